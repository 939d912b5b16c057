package reloader

import (
	"regexp"
	"strings"
	"time"

	"github.com/hazyhaar/livereload/dom"
	"github.com/hazyhaar/livereload/timer"
	"github.com/hazyhaar/livereload/urlpath"
)

var stylesheetRelRe = regexp.MustCompile(`(?i)^stylesheet$`)

// candidate is something that may reference the changed stylesheet: a
// <link>, a polyfill-managed <style data-href>, or an @import rule. For
// imports, Link is the element owning the top-level sheet and Index is the
// rule's position in its parent sheet.
type candidate struct {
	Link  dom.Element
	Rule  dom.Rule
	Index int
	Href  string
}

// reloadStylesheet reattaches the stylesheet best matching the changed path,
// or every linked stylesheet when nothing matches. It always reports the
// change as handled.
func (c *reload) reloadStylesheet() bool {
	var links []candidate
	for _, el := range c.doc.ElementsByTagName("link") {
		if stylesheetRelRe.MatchString(el.Property("rel")) && !c.reg.isPending(el.Key()) {
			links = append(links, candidate{Link: el, Href: linkHref(el)})
		}
	}

	var imported []candidate
	for _, style := range c.doc.ElementsByTagName("style") {
		if sheet := style.Sheet(); sheet != nil {
			imported = collectImports(style, sheet, imported)
		}
	}
	for _, l := range links {
		imported = collectImports(l.Link, l.Link.Sheet(), imported)
	}

	if c.doc.StyleFix() != nil {
		styles, err := c.doc.QuerySelectorAll("style[data-href]")
		if err != nil {
			c.logger.Debug("reloader: prefix-free scan skipped", "error", err)
		}
		for _, el := range styles {
			links = append(links, candidate{Link: el, Href: linkHref(el)})
		}
	}

	c.logger.Debug("reloader: stylesheet candidates", "links", len(links), "imported", len(imported))

	all := append(append([]candidate(nil), links...), imported...)
	match, ok := urlpath.PickBestMatch(c.path, all, func(cand candidate) string {
		return urlpath.PathFromURL(cand.Href)
	})

	switch {
	case ok && match.Object.Rule != nil:
		c.logger.Debug("reloader: reloading imported stylesheet", "href", match.Object.Href, "score", match.Score)
		c.reattachImportedRule(match.Object)
	case ok:
		c.logger.Debug("reloader: reloading stylesheet", "href", match.Object.Href, "score", match.Score)
		c.reattachStylesheetLink(match.Object.Link)
	default:
		c.logger.Debug("reloader: reloading all stylesheets", "path", c.path)
		for _, l := range links {
			c.reattachStylesheetLink(l.Link)
		}
	}
	return true
}

// collectImports appends the @import rules of sheet, and of the sheets they
// import, to out. Unreadable sheets contribute nothing.
func collectImports(link dom.Element, sheet dom.StyleSheet, out []candidate) []candidate {
	for i, rule := range dom.Rules(sheet) {
		switch rule.Type() {
		case dom.CharsetRule:
		case dom.ImportRule:
			out = append(out, candidate{Link: link, Rule: rule, Index: i, Href: rule.Href()})
			out = collectImports(link, rule.StyleSheet(), out)
		}
	}
	return out
}

// linkHref returns the element's stylesheet URL. The prefix-free polyfill
// keeps it in data-href once it has turned a <link> into a <style>.
func linkHref(el dom.Element) string {
	if href := el.Property("href"); href != "" {
		return href
	}
	v, _ := el.Attribute("data-href")
	return v
}

// reattachStylesheetLink inserts a cache-busted copy of link right after it
// and removes the original once the copy has loaded and settled.
func (c *reload) reattachStylesheetLink(link dom.Element) {
	if !c.reg.markPending(link.Key()) {
		return
	}

	var clone dom.Element
	if strings.EqualFold(link.TagName(), "style") {
		if clone = c.doc.CreateElement("link"); clone != nil {
			clone.SetProperty("rel", "stylesheet")
			if media := link.Property("media"); media != "" {
				clone.SetProperty("media", media)
			}
			if disabled := link.Property("disabled"); disabled != "" {
				clone.SetProperty("disabled", disabled)
			}
		}
	} else {
		clone = link.CloneNode()
	}
	if clone == nil {
		c.reg.release(link.Key())
		c.logger.Warn("reloader: cannot copy stylesheet link, reloading page", "href", linkHref(link))
		c.reloadPage()
		return
	}
	clone.SetProperty("href", c.gen.URL(linkHref(link), ""))

	parent := link.Parent()
	if parent == nil {
		c.reg.release(link.Key())
		return
	}
	parent.InsertBefore(clone, link.NextSibling())

	c.waitUntilCSSLoads(clone, func() {
		c.sched.Schedule(c.settleDelay(), func() {
			defer c.reg.release(link.Key())
			p := link.Parent()
			if p == nil {
				return
			}
			p.RemoveChild(link)
			if fix := c.doc.StyleFix(); fix != nil {
				fix.Link(clone)
			}
		})
	})
}

// waitUntilCSSLoads runs fn once, when clone fires its load event, when a
// poll finds its sheet, or when the stylesheet timeout expires, whichever
// comes first.
func (c *reload) waitUntilCSSLoads(clone dom.Element, fn func()) {
	var (
		executed bool
		poller   timer.Handle
		failsafe timer.Handle
	)
	execute := func() {
		if executed {
			return
		}
		executed = true
		if poller != nil {
			poller.Stop()
		}
		if failsafe != nil {
			failsafe.Stop()
		}
		fn()
	}

	clone.OnLoad(func() {
		c.logger.Debug("reloader: new stylesheet finished loading", "href", clone.Property("href"))
		c.knownToSupportCSSOnLoad = true
		execute()
	})

	if !c.knownToSupportCSSOnLoad {
		var poll func()
		poll = func() {
			if executed {
				return
			}
			if clone.Sheet() != nil {
				c.logger.Debug("reloader: new stylesheet detected by polling", "href", clone.Property("href"))
				execute()
				return
			}
			poller = c.sched.Schedule(PollInterval, poll)
		}
		poll()
	}

	if !executed {
		failsafe = c.sched.Schedule(c.opts.StylesheetReloadTimeout, execute)
	}
}

// settleDelay is the grace period between load detection and removal of the
// original link. WebKit flashes unstyled content on longer waits.
func (c *reload) settleDelay() time.Duration {
	if strings.Contains(c.doc.UserAgent(), "AppleWebKit") {
		return webKitSettleDelay
	}
	return defaultSettleDelay
}
