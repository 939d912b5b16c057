package reloader

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/livereload/dom"
)

// reattachImportedRule replaces an @import rule with one pointing at a
// cache-busted URL. The new target is pre-cached through a temporary link,
// then the rule is swapped twice, ImportCacheWait apart. A later
// reattachment of the same slot supersedes this one.
func (c *reload) reattachImportedRule(cand candidate) {
	parent := cand.Rule.ParentStyleSheet()
	if parent == nil {
		return
	}
	href := c.gen.URL(cand.Rule.Href(), "")
	newRule := fmt.Sprintf(`@import url("%s") %s;`, href, strings.Join(cand.Rule.Media(), ", "))
	slot := slotKey(parent, cand.Index)

	temp := c.doc.CreateElement("link")
	if temp == nil {
		c.logger.Warn("reloader: cannot create pre-cache link, reloading page", "href", href)
		c.reloadPage()
		return
	}
	seq := c.reg.stamp(slot)

	temp.SetProperty("rel", "stylesheet")
	temp.SetProperty("href", href)
	c.reg.markPending(temp.Key())
	if p := cand.Link.Parent(); p != nil {
		p.InsertBefore(temp, cand.Link)
	}

	c.sched.Schedule(ImportCacheWait, func() {
		if p := temp.Parent(); p != nil {
			p.RemoveChild(temp)
		}
		c.reg.release(temp.Key())

		if !c.reg.current(slot, seq) {
			c.logger.Debug("reloader: import reattachment superseded", "href", href)
			return
		}
		if !c.swapRule(parent, newRule, cand.Index) {
			c.reg.settle(slot, seq)
			return
		}

		c.sched.Schedule(ImportCacheWait, func() {
			if !c.reg.current(slot, seq) {
				c.logger.Debug("reloader: import reattachment superseded", "href", href)
				return
			}
			c.swapRule(parent, newRule, cand.Index)
			c.reg.settle(slot, seq)
		})
	})
}

// swapRule inserts text at index and deletes the rule it displaced.
func (c *reload) swapRule(sheet dom.StyleSheet, text string, index int) bool {
	if err := sheet.InsertRule(text, index); err != nil {
		c.logger.Debug("reloader: insert rule", "sheet", sheet.Key(), "index", index, "error", err)
		return false
	}
	if err := sheet.DeleteRule(index + 1); err != nil {
		c.logger.Debug("reloader: delete rule", "sheet", sheet.Key(), "index", index+1, "error", err)
		return false
	}
	return true
}
