package reloader

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/livereload/dom"
	"github.com/hazyhaar/livereload/urlpath"
)

// imageStyles lists the inline style selectors worth scanning and the
// properties that may carry url() references for each.
var imageStyles = []struct {
	selector   string
	styleNames []string
}{
	{selector: "background", styleNames: []string{"backgroundImage"}},
	{selector: "border", styleNames: []string{"borderImage", "webkitBorderImage", "MozBorderImage"}},
}

var cssURLRe = regexp.MustCompile(`\burl\s*\(([^)]*)\)`)

// reloadImages rewrites every image reference matching the changed path with
// one shared token.
func (c *reload) reloadImages() {
	token := c.gen.Token()
	rewritten := 0

	for _, img := range c.doc.ElementsByTagName("img") {
		src := img.Property("src")
		if src != "" && urlpath.PathsMatch(c.path, urlpath.PathFromURL(src)) {
			img.SetProperty("src", c.gen.URL(src, token))
			rewritten++
		}
	}

	for _, is := range imageStyles {
		els, err := c.doc.QuerySelectorAll("[style*=" + is.selector + "]")
		if err != nil {
			c.logger.Debug("reloader: inline style scan skipped", "selector", is.selector, "error", err)
			continue
		}
		for _, el := range els {
			rewritten += c.reloadStyleImages(el.Style(), is.styleNames, token)
		}
	}

	for _, sheet := range c.doc.StyleSheets() {
		rewritten += c.reloadRuleImages(dom.Rules(sheet), token)
	}

	c.logger.Debug("reloader: images reloaded", "path", c.path, "rewritten", rewritten)
}

// reloadRuleImages walks rules through @import and @media.
func (c *reload) reloadRuleImages(rules []dom.Rule, token string) int {
	n := 0
	for _, rule := range rules {
		switch rule.Type() {
		case dom.ImportRule:
			n += c.reloadRuleImages(dom.Rules(rule.StyleSheet()), token)
		case dom.StyleRule:
			style := rule.Style()
			if style == nil {
				continue
			}
			for _, is := range imageStyles {
				n += c.reloadStyleImages(style, is.styleNames, token)
			}
		case dom.MediaRule:
			n += c.reloadRuleImages(dom.NestedRules(rule), token)
		}
	}
	return n
}

// reloadStyleImages rewrites the url() references of the named properties
// that match the changed path. It returns the number of properties written.
func (c *reload) reloadStyleImages(style dom.Style, names []string, token string) int {
	n := 0
	for _, name := range names {
		value := style.Get(name)
		if value == "" {
			continue
		}
		updated := cssURLRe.ReplaceAllStringFunc(value, func(match string) string {
			inner := strings.TrimSpace(cssURLRe.FindStringSubmatch(match)[1])
			quote := ""
			if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
				quote = inner[:1]
				inner = inner[1 : len(inner)-1]
			}
			if !urlpath.PathsMatch(c.path, urlpath.PathFromURL(inner)) {
				return match
			}
			return "url(" + quote + c.gen.URL(inner, token) + quote + ")"
		})
		if updated != value {
			style.Set(name, updated)
			n++
		}
	}
	return n
}
