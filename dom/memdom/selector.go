package memdom

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/livereload/dom"
)

// Supported selectors: "tag", "[attr]", "[attr=val]", "[attr*=val]" and the
// tag-qualified forms ("style[data-href]"). Anything else is unsupported.
var selectorRe = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9]*)?(?:\[([a-zA-Z_:][-a-zA-Z0-9_:.]*)(?:(\*?=)(?:"([^"]*)"|'([^']*)'|([^\]"']*)))?\])?$`)

type simpleSelector struct {
	tag     string
	attrKey string
	op      string // "", "=" or "*="
	attrVal string
}

func parseSelector(sel string) (simpleSelector, error) {
	sel = strings.TrimSpace(sel)
	m := selectorRe.FindStringSubmatch(sel)
	if sel == "" || m == nil {
		return simpleSelector{}, fmt.Errorf("memdom: selector %q: %w", sel, dom.ErrUnsupported)
	}
	return simpleSelector{
		tag:     strings.ToLower(m[1]),
		attrKey: m[2],
		op:      m[3],
		attrVal: m[4] + m[5] + m[6],
	}, nil
}

func (s simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.attrKey == "" {
		return true
	}
	for _, a := range n.Attr {
		if a.Key != s.attrKey {
			continue
		}
		switch s.op {
		case "":
			return true
		case "=":
			return a.Val == s.attrVal
		default:
			return s.attrVal != "" && strings.Contains(a.Val, s.attrVal)
		}
	}
	return false
}
