package memdom

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"

	"github.com/hazyhaar/livereload/dom"
	"github.com/hazyhaar/livereload/dom/mutation"
)

// maxImportDepth bounds @import recursion on cyclic imports.
const maxImportDepth = 8

var importPreludeRe = regexp.MustCompile(`^(?:url\(\s*['"]?([^'")]*)['"]?\s*\)|['"]([^'"]*)['"])\s*(.*)$`)

type sheet struct {
	doc          *Document
	key          string
	href         string
	base         string
	rules        []*rule
	inaccessible bool
}

func (s *sheet) Key() string  { return s.key }
func (s *sheet) Href() string { return s.href }

func (s *sheet) CSSRules() ([]dom.Rule, error) {
	if s.inaccessible {
		return nil, fmt.Errorf("memdom: %s: %w", s.href, dom.ErrInaccessible)
	}
	return toRules(s.rules), nil
}

func (s *sheet) InsertRule(text string, index int) error {
	if s.inaccessible {
		return fmt.Errorf("memdom: insert rule: %w", dom.ErrInaccessible)
	}
	if index < 0 || index > len(s.rules) {
		return fmt.Errorf("memdom: insert rule: index %d out of range [0,%d]", index, len(s.rules))
	}
	parsed, err := parser.Parse(text)
	if err != nil {
		return fmt.Errorf("memdom: insert rule: %w", err)
	}
	if len(parsed.Rules) != 1 {
		return fmt.Errorf("memdom: insert rule: want exactly one rule, got %d", len(parsed.Rules))
	}
	r := s.doc.buildRule(s, parsed.Rules[0], 0)
	s.rules = append(s.rules, nil)
	copy(s.rules[index+1:], s.rules[index:])
	s.rules[index] = r
	s.doc.record(mutation.Record{Op: mutation.OpRuleInsert, Target: s.key, Value: text, Index: index})
	return nil
}

func (s *sheet) DeleteRule(index int) error {
	if s.inaccessible {
		return fmt.Errorf("memdom: delete rule: %w", dom.ErrInaccessible)
	}
	if index < 0 || index >= len(s.rules) {
		return fmt.Errorf("memdom: delete rule: index %d out of range [0,%d)", index, len(s.rules))
	}
	s.rules = append(s.rules[:index], s.rules[index+1:]...)
	s.doc.record(mutation.Record{Op: mutation.OpRuleDelete, Target: s.key, Index: index})
	return nil
}

// rule is a CSSRule. Exactly one of the type-specific fields is set.
type rule struct {
	typ    dom.RuleType
	parent *sheet

	// import
	href  string
	media []string
	child *sheet

	// style
	style *declarations

	// media
	nested []*rule
}

func (r *rule) Type() dom.RuleType               { return r.typ }
func (r *rule) Href() string                     { return r.href }
func (r *rule) Media() []string                  { return r.media }
func (r *rule) ParentStyleSheet() dom.StyleSheet { return r.parent }

func (r *rule) StyleSheet() dom.StyleSheet {
	if r.child == nil {
		return nil
	}
	return r.child
}

func (r *rule) Style() dom.Style {
	if r.style == nil {
		return nil
	}
	return r.style
}

func (r *rule) CSSRules() ([]dom.Rule, error) {
	if r.typ != dom.MediaRule {
		return nil, nil
	}
	return toRules(r.nested), nil
}

func toRules(rs []*rule) []dom.Rule {
	out := make([]dom.Rule, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}

// newSheet parses text into a stylesheet owned by the document. href is the
// sheet's own URL (empty for inline sheets); relative URLs inside it resolve
// against href, or the document base when href is empty.
func (d *Document) newSheet(href, text string, depth int) *sheet {
	s := &sheet{doc: d, key: d.nextKey("s"), href: href, base: href}
	if s.base == "" {
		s.base = d.base
	}
	if href != "" && d.opts.Inaccessible != nil && d.opts.Inaccessible(href) {
		s.inaccessible = true
	}
	parsed, err := parser.Parse(text)
	if err != nil {
		d.logger.Debug("memdom: parse stylesheet", "href", href, "error", err)
		return s
	}
	for _, cr := range parsed.Rules {
		s.rules = append(s.rules, d.buildRule(s, cr, depth))
	}
	return s
}

func (d *Document) buildRule(parent *sheet, cr *css.Rule, depth int) *rule {
	r := &rule{typ: dom.UnknownRule, parent: parent}
	if cr.Kind == css.QualifiedRule {
		r.typ = dom.StyleRule
		r.style = &declarations{decls: cr.Declarations}
		r.style.onChange = func(prop, value string) {
			d.record(mutation.Record{Op: mutation.OpStyle, Target: parent.key, Name: prop, Value: value})
		}
		return r
	}

	switch strings.ToLower(cr.Name) {
	case "@charset":
		r.typ = dom.CharsetRule
	case "@import":
		r.typ = dom.ImportRule
		m := importPreludeRe.FindStringSubmatch(strings.TrimSpace(cr.Prelude))
		if m == nil {
			return r
		}
		target := m[1]
		if target == "" {
			target = m[2]
		}
		r.href = d.resolveFrom(parent.base, target)
		for _, q := range strings.Split(m[3], ",") {
			if q = strings.TrimSpace(q); q != "" {
				r.media = append(r.media, q)
			}
		}
		if depth < maxImportDepth {
			if text, err := d.fetch(r.href); err == nil {
				r.child = d.newSheet(r.href, text, depth+1)
			} else {
				d.logger.Debug("memdom: fetch import", "href", r.href, "error", err)
			}
		}
	case "@media":
		r.typ = dom.MediaRule
		for _, nested := range cr.Rules {
			r.nested = append(r.nested, d.buildRule(parent, nested, depth))
		}
	}
	return r
}
