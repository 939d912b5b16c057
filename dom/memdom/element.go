package memdom

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/livereload/dom"
	"github.com/hazyhaar/livereload/dom/mutation"
)

type element struct {
	doc    *Document
	node   *html.Node
	key    string
	sheet  *sheet
	onload []func()
	style  *declarations
}

// wrap returns the element for n, creating it on first sight so that every
// node has exactly one stable wrapper.
func (d *Document) wrap(n *html.Node) *element {
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &element{doc: d, node: n, key: d.nextKey("n")}
	d.elements[n] = el
	return el
}

func (e *element) Key() string     { return e.key }
func (e *element) TagName() string { return e.node.Data }

func (e *element) Attribute(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *element) setAttribute(name, value string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

func (e *element) removeAttribute(name string) {
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace != "" || a.Key != name {
			attrs = append(attrs, a)
		}
	}
	e.node.Attr = attrs
}

func (e *element) Property(name string) string {
	switch name {
	case "href", "src":
		v, ok := e.Attribute(name)
		if !ok {
			return ""
		}
		return e.doc.resolveFrom(e.doc.base, v)
	case "disabled":
		if _, ok := e.Attribute("disabled"); ok {
			return "true"
		}
		return ""
	default:
		v, _ := e.Attribute(name)
		return v
	}
}

func (e *element) SetProperty(name, value string) {
	if name == "disabled" {
		if value == "" || value == "false" {
			e.removeAttribute(name)
		} else {
			e.setAttribute(name, "")
		}
	} else {
		e.setAttribute(name, value)
	}
	e.doc.record(mutation.Record{Op: mutation.OpAttr, Target: e.key, Tag: e.TagName(), Name: name, Value: value})

	if name == "href" && e.isStylesheetLink() && e.doc.attached(e.node) {
		e.doc.scheduleLoad(e)
	}
}

func (e *element) Style() dom.Style {
	if e.style == nil {
		v, _ := e.Attribute("style")
		e.style = &declarations{decls: parseDeclarations(v)}
		e.style.onChange = func(prop, value string) {
			e.setAttribute("style", e.style.String())
			e.doc.record(mutation.Record{Op: mutation.OpStyle, Target: e.key, Tag: e.TagName(), Name: prop, Value: value})
		}
	}
	return e.style
}

func (e *element) Sheet() dom.StyleSheet {
	if e.sheet == nil {
		return nil
	}
	return e.sheet
}

func (e *element) OnLoad(fn func()) { e.onload = append(e.onload, fn) }

func (e *element) CloneNode() dom.Element {
	n := &html.Node{Type: e.node.Type, DataAtom: e.node.DataAtom, Data: e.node.Data, Namespace: e.node.Namespace}
	n.Attr = append([]html.Attribute(nil), e.node.Attr...)
	return e.doc.wrap(n)
}

func (e *element) Parent() dom.Element {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

func (e *element) NextSibling() dom.Element {
	for s := e.node.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return e.doc.wrap(s)
		}
	}
	return nil
}

func (e *element) InsertBefore(child, ref dom.Element) {
	c := e.doc.unwrap(child)
	if c == nil {
		return
	}
	if c.node.Parent != nil {
		c.node.Parent.RemoveChild(c.node)
	}
	var refNode *html.Node
	if r := e.doc.unwrap(ref); r != nil && r.node.Parent == e.node {
		refNode = r.node
	}
	e.node.InsertBefore(c.node, refNode)
	e.doc.record(mutation.Record{Op: mutation.OpInsert, Target: c.key, Tag: c.TagName(), Value: c.Property("href")})

	if c.isStylesheetLink() && e.doc.attached(c.node) {
		e.doc.scheduleLoad(c)
	}
}

func (e *element) RemoveChild(child dom.Element) {
	c := e.doc.unwrap(child)
	if c == nil || c.node.Parent != e.node {
		return
	}
	e.node.RemoveChild(c.node)
	e.doc.record(mutation.Record{Op: mutation.OpRemove, Target: c.key, Tag: c.TagName(), Value: c.Property("href")})
}

func (e *element) isStylesheetLink() bool {
	if e.node.Data != "link" {
		return false
	}
	rel, _ := e.Attribute("rel")
	return strings.EqualFold(strings.TrimSpace(rel), "stylesheet") && e.Property("href") != ""
}

// unwrap returns the memdom element behind el, or nil for foreign elements.
func (d *Document) unwrap(el dom.Element) *element {
	if el == nil {
		return nil
	}
	e, ok := el.(*element)
	if !ok || e.doc != d {
		return nil
	}
	return e
}
