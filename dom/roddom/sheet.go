package roddom

import (
	"fmt"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/livereload/dom"
)

// rulesJS returns the rules of this as an array, or null when the browser
// refuses access.
const rulesJS = `() => {
	try {
		return this.cssRules ? Array.from(this.cssRules) : null;
	} catch (e) {
		return null;
	}
}`

type sheet struct {
	doc *Document
	obj *proto.RuntimeRemoteObject
	key string
}

func (s *sheet) Key() string {
	if s.key != "" {
		return s.key
	}
	res, err := s.doc.call(s.obj, `() => globalThis.__livereloadKey ? globalThis.__livereloadKey(this) : ""`)
	if err != nil || res.Value.Str() == "" {
		return "obj:" + string(s.obj.ObjectID)
	}
	s.key = res.Value.Str()
	return s.key
}

func (s *sheet) Href() string {
	res, err := s.doc.call(s.obj, `() => this.href || ""`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (s *sheet) CSSRules() ([]dom.Rule, error) {
	return s.doc.rules(s.obj)
}

func (s *sheet) InsertRule(text string, index int) error {
	if _, err := s.doc.call(s.obj, `(t, i) => { this.insertRule(t, i); }`, text, index); err != nil {
		return fmt.Errorf("roddom: insert rule: %w", err)
	}
	return nil
}

func (s *sheet) DeleteRule(index int) error {
	if _, err := s.doc.call(s.obj, `(i) => { this.deleteRule(i); }`, index); err != nil {
		return fmt.Errorf("roddom: delete rule: %w", err)
	}
	return nil
}

func (d *Document) rules(owner *proto.RuntimeRemoteObject) ([]dom.Rule, error) {
	arr, err := d.callObject(owner, rulesJS)
	if err != nil {
		return nil, fmt.Errorf("roddom: css rules: %w", err)
	}
	if isNull(arr) {
		return nil, dom.ErrInaccessible
	}
	objs, err := d.items(arr)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Rule, 0, len(objs))
	for _, o := range objs {
		r := &rule{doc: d, obj: o}
		r.describe()
		out = append(out, r)
	}
	return out, nil
}

type rule struct {
	doc   *Document
	obj   *proto.RuntimeRemoteObject
	typ   dom.RuleType
	href  string
	media []string
}

// describe fetches the scalar fields in one round trip.
func (r *rule) describe() {
	res, err := r.doc.call(r.obj, `() => ({
		type: this.type,
		href: this.href || "",
		media: this.media ? Array.from(this.media) : [],
	})`)
	if err != nil {
		r.doc.logger.Debug("roddom: describe rule", "error", err)
		return
	}
	r.typ = dom.RuleType(res.Value.Get("type").Int())
	r.href = res.Value.Get("href").Str()
	for _, m := range res.Value.Get("media").Arr() {
		r.media = append(r.media, m.Str())
	}
}

func (r *rule) Type() dom.RuleType { return r.typ }
func (r *rule) Href() string       { return r.href }
func (r *rule) Media() []string    { return r.media }

func (r *rule) StyleSheet() dom.StyleSheet {
	return r.doc.sheetProp(r.obj, `() => this.styleSheet`)
}

func (r *rule) ParentStyleSheet() dom.StyleSheet {
	return r.doc.sheetProp(r.obj, `() => this.parentStyleSheet`)
}

func (r *rule) Style() dom.Style {
	if r.typ != dom.StyleRule {
		return nil
	}
	return &style{doc: r.doc, owner: r.obj}
}

func (r *rule) CSSRules() ([]dom.Rule, error) {
	if r.typ != dom.MediaRule {
		return nil, nil
	}
	return r.doc.rules(r.obj)
}

func (d *Document) sheetProp(owner *proto.RuntimeRemoteObject, js string) dom.StyleSheet {
	obj, err := d.callObject(owner, js)
	if err != nil || isNull(obj) {
		return nil
	}
	return &sheet{doc: d, obj: obj}
}

// style reads and writes owner.style through camel-cased property names.
type style struct {
	doc   *Document
	owner *proto.RuntimeRemoteObject
}

func (s *style) Get(name string) string {
	res, err := s.doc.call(s.owner, `(n) => this.style[n] || ""`, name)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (s *style) Set(name, value string) {
	if _, err := s.doc.call(s.owner, `(n, v) => { this.style[n] = v; }`, name, value); err != nil {
		s.doc.logger.Debug("roddom: set style", "name", name, "error", err)
	}
}
