package roddom

import (
	"strconv"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/livereload/dom"
)

// trackLoadJS stores the outcome of a node's next load on the node, so that
// OnLoad still sees a load that completed before it was called. Nodes the
// engine inserts get it before their href is set.
const trackLoadJS = `(el) => {
	el.__livereloadLoad = new Promise((resolve) => {
		el.addEventListener("load", () => resolve(true), { once: true });
		el.addEventListener("error", () => resolve(false), { once: true });
	});
	return el;
}`

type element struct {
	doc *Document
	el  *rod.Element
	key string
}

// Key is the node's backend id, which is stable for the node's lifetime.
func (e *element) Key() string {
	if e.key != "" {
		return e.key
	}
	node, err := e.el.Describe(0, false)
	if err != nil {
		e.doc.logger.Debug("roddom: describe node", "error", err)
		return "obj:" + string(e.el.Object.ObjectID)
	}
	e.key = "n" + strconv.Itoa(int(node.BackendNodeID))
	return e.key
}

func (e *element) TagName() string {
	res, err := e.el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (e *element) Attribute(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (e *element) Property(name string) string {
	res, err := e.el.Eval(`(n) => {
		const v = this[n];
		if (v === true) return "true";
		if (v === false || v == null) return "";
		return String(v);
	}`, name)
	if err != nil {
		e.doc.logger.Debug("roddom: property", "name", name, "error", err)
		return ""
	}
	return res.Value.Str()
}

func (e *element) SetProperty(name, value string) {
	if _, err := e.el.Eval(`(n, v) => { this[n] = n === "disabled" ? v === "true" : v; }`, name, value); err != nil {
		e.doc.logger.Debug("roddom: set property", "name", name, "error", err)
	}
}

func (e *element) Style() dom.Style {
	return &style{doc: e.doc, owner: e.el.Object}
}

func (e *element) Sheet() dom.StyleSheet {
	obj, err := e.el.Evaluate(rod.Eval(`() => this.sheet`).ByObject())
	if err != nil || isNull(obj) {
		return nil
	}
	return &sheet{doc: e.doc, obj: obj}
}

// OnLoad waits for the load event in a goroutine and posts fn to the
// document loop when it fires. A failed load releases the wait without
// calling fn.
func (e *element) OnLoad(fn func()) {
	el := e.el.Context(e.doc.ctx)
	go func() {
		res, err := el.Evaluate(rod.Eval(`() => this.__livereloadLoad || new Promise((resolve) => {
			this.addEventListener("load", () => resolve(true), { once: true });
			this.addEventListener("error", () => resolve(false), { once: true });
		})`).ByPromise())
		if err != nil {
			return
		}
		if !res.Value.Bool() {
			e.doc.logger.Debug("roddom: load failed")
			return
		}
		e.doc.cfg.Post(fn)
	}()
}

func (e *element) CloneNode() dom.Element {
	obj, err := e.el.Evaluate(rod.Eval(`() => (` + trackLoadJS + `)(this.cloneNode(false))`).ByObject())
	if err != nil {
		e.doc.logger.Warn("roddom: clone node", "error", err)
		return nil
	}
	if c := e.doc.elementFromObject(obj); c != nil {
		return c
	}
	return nil
}

func (e *element) Parent() dom.Element {
	return e.relative(`() => this.parentElement`)
}

func (e *element) NextSibling() dom.Element {
	return e.relative(`() => this.nextElementSibling`)
}

func (e *element) relative(js string) dom.Element {
	obj, err := e.el.Evaluate(rod.Eval(js).ByObject())
	if err != nil {
		return nil
	}
	if r := e.doc.elementFromObject(obj); r != nil {
		return r
	}
	return nil
}

func (e *element) InsertBefore(child, ref dom.Element) {
	c, ok := child.(*element)
	if !ok {
		return
	}
	var refArg interface{}
	if r, ok := ref.(*element); ok && r != nil {
		refArg = r.el.Object
	}
	if _, err := e.el.Eval(`(c, r) => { this.insertBefore(c, r); }`, c.el.Object, refArg); err != nil {
		e.doc.logger.Warn("roddom: insert before", "error", err)
	}
}

func (e *element) RemoveChild(child dom.Element) {
	c, ok := child.(*element)
	if !ok {
		return
	}
	if _, err := e.el.Eval(`(c) => { if (c.parentNode === this) this.removeChild(c); }`, c.el.Object); err != nil {
		e.doc.logger.Warn("roddom: remove child", "error", err)
	}
}
