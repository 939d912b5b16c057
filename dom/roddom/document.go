// Package roddom implements dom.Document on a live Chrome tab through go-rod.
// Elements are remote DOM nodes and CSSOM objects are remote objects; every
// method is a CDP round trip, so callers should drive a Document from its
// own timer.Loop like the engine does.
package roddom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/livereload/dom"
)

// keyHelperJS gives CSSOM objects a stable per-document identity.
const keyHelperJS = `() => {
	if (globalThis.__livereloadKey) return;
	const keys = new WeakMap();
	let n = 0;
	globalThis.__livereloadKey = (o) => {
		if (!keys.has(o)) keys.set(o, "s" + (++n));
		return keys.get(o);
	};
}`

// Config configures a Document.
type Config struct {
	// Post delivers asynchronous events (element load) onto the document's
	// event loop. Required.
	Post func(fn func()) bool

	// OnNavigate runs after Reload has started a navigation. The previous
	// Document must not be used afterwards.
	OnNavigate func()

	Logger *slog.Logger
}

// Document is a dom.Document backed by a rod page.
type Document struct {
	ctx    context.Context
	page   *rod.Page
	cfg    Config
	logger *slog.Logger
	ua     string
}

// New binds a Document to page. ctx bounds every CDP call and the goroutines
// waiting for load events.
func New(ctx context.Context, page *rod.Page, cfg Config) (*Document, error) {
	if cfg.Post == nil {
		return nil, errors.New("roddom: nil Post")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	d := &Document{ctx: ctx, page: page.Context(ctx), cfg: cfg, logger: cfg.Logger}

	if _, err := d.page.Eval(keyHelperJS); err != nil {
		return nil, fmt.Errorf("roddom: install key helper: %w", err)
	}
	res, err := d.page.Eval(`() => navigator.userAgent`)
	if err != nil {
		return nil, fmt.Errorf("roddom: user agent: %w", err)
	}
	d.ua = res.Value.Str()
	return d, nil
}

// Page returns the underlying rod page.
func (d *Document) Page() *rod.Page { return d.page }

func (d *Document) ElementsByTagName(tag string) []dom.Element {
	els, err := d.page.Elements(tag)
	if err != nil {
		d.logger.Debug("roddom: elements by tag", "tag", tag, "error", err)
		return nil
	}
	return d.wrapAll(els)
}

func (d *Document) QuerySelectorAll(selector string) ([]dom.Element, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("roddom: querySelectorAll %q: %w", selector, err)
	}
	return d.wrapAll(els), nil
}

func (d *Document) StyleSheets() []dom.StyleSheet {
	arr, err := d.page.Evaluate(rod.Eval(`() => Array.from(document.styleSheets)`).ByObject())
	if err != nil {
		d.logger.Debug("roddom: style sheets", "error", err)
		return nil
	}
	objs, err := d.items(arr)
	if err != nil {
		d.logger.Debug("roddom: style sheets", "error", err)
		return nil
	}
	out := make([]dom.StyleSheet, 0, len(objs))
	for _, o := range objs {
		out = append(out, &sheet{doc: d, obj: o})
	}
	return out
}

func (d *Document) CreateElement(tag string) dom.Element {
	obj, err := d.page.Evaluate(rod.Eval(`(t) => (` + trackLoadJS + `)(document.createElement(t))`, tag).ByObject())
	if err != nil {
		d.logger.Warn("roddom: create element", "tag", tag, "error", err)
		return nil
	}
	if el := d.elementFromObject(obj); el != nil {
		return el
	}
	return nil
}

func (d *Document) UserAgent() string { return d.ua }

func (d *Document) StyleFix() dom.StyleFix {
	res, err := d.page.Eval(`() => !!(window.StyleFix && window.StyleFix.link)`)
	if err != nil || !res.Value.Bool() {
		return nil
	}
	return styleFix{doc: d}
}

func (d *Document) Reload() {
	if err := d.page.Reload(); err != nil {
		d.logger.Warn("roddom: reload", "error", err)
		return
	}
	if d.cfg.OnNavigate != nil {
		d.cfg.OnNavigate()
	}
}

type styleFix struct{ doc *Document }

func (f styleFix) Link(el dom.Element) {
	e, ok := el.(*element)
	if !ok {
		return
	}
	if _, err := e.el.Eval(`() => window.StyleFix.link(this)`); err != nil {
		f.doc.logger.Debug("roddom: StyleFix.link", "error", err)
	}
}

func (d *Document) wrapAll(els rod.Elements) []dom.Element {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{doc: d, el: el})
	}
	return out
}

func (d *Document) elementFromObject(obj *proto.RuntimeRemoteObject) *element {
	if isNull(obj) {
		return nil
	}
	el, err := d.page.ElementFromObject(obj)
	if err != nil {
		d.logger.Debug("roddom: element from object", "error", err)
		return nil
	}
	return &element{doc: d, el: el}
}

// items returns the elements of a remote array in index order.
func (d *Document) items(arr *proto.RuntimeRemoteObject) ([]*proto.RuntimeRemoteObject, error) {
	if isNull(arr) {
		return nil, nil
	}
	props, err := proto.RuntimeGetProperties{ObjectID: arr.ObjectID, OwnProperties: true}.Call(d.page)
	if err != nil {
		return nil, fmt.Errorf("roddom: array items: %w", err)
	}
	byIndex := make(map[int]*proto.RuntimeRemoteObject, len(props.Result))
	for _, p := range props.Result {
		i, err := strconv.Atoi(p.Name)
		if err != nil || p.Value == nil {
			continue
		}
		byIndex[i] = p.Value
	}
	out := make([]*proto.RuntimeRemoteObject, 0, len(byIndex))
	for i := 0; i < len(byIndex); i++ {
		if o, ok := byIndex[i]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// call evaluates js with this bound to obj and returns the result by value.
func (d *Document) call(obj *proto.RuntimeRemoteObject, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	return d.page.Evaluate(rod.Eval(js, args...).This(obj))
}

// callObject is call returning a remote object reference.
func (d *Document) callObject(obj *proto.RuntimeRemoteObject, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	return d.page.Evaluate(rod.Eval(js, args...).This(obj).ByObject())
}

func isNull(obj *proto.RuntimeRemoteObject) bool {
	return obj == nil || obj.ObjectID == ""
}
