package memdom

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/livereload/dom"
	"github.com/hazyhaar/livereload/dom/mutation"
	"github.com/hazyhaar/livereload/timer"
)

const page = `<!DOCTYPE html>
<html><head>
<link rel="stylesheet" href="/css/main.css">
<style>@import url("/css/print.css") print; p { color: blue; }</style>
</head><body>
<img src="img/logo.png">
<div id="hero" style="background-image: url(/img/bg.png); color: red"></div>
<style data-href="/css/pf.css">a { color: green; }</style>
</body></html>`

var files = map[string]string{
	"/css/main.css":  `@charset "utf-8"; @import url("theme.css") screen, print; body { color: red; } @media screen { .x { background-image: url(a.png); } }`,
	"/css/theme.css": `h1 { border-image: url(border.png) 30; }`,
	"/css/print.css": `body { color: black; }`,
	"/css/late.css":  `body { margin: 0; }`,
}

func newDoc(t *testing.T, mut func(*Options)) (*Document, *timer.Manual, *mutation.Log) {
	t.Helper()
	clock := timer.NewManual(time.UnixMilli(1_700_000_000_000))
	journal := &mutation.Log{}
	opts := Options{
		BaseURL:   "http://localhost:3000/",
		Fetch:     FetchMap(files),
		Scheduler: clock,
		LoadDelay: 10 * time.Millisecond,
		Journal:   journal,
	}
	if mut != nil {
		mut(&opts)
	}
	d, err := ParseString(page, opts)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return d, clock, journal
}

func TestParse_StyleSheets(t *testing.T) {
	d, _, _ := newDoc(t, nil)

	sheets := d.StyleSheets()
	if len(sheets) != 3 {
		t.Fatalf("StyleSheets: got %d, want 3", len(sheets))
	}
	if got := sheets[0].Href(); got != "http://localhost:3000/css/main.css" {
		t.Fatalf("sheet 0 href: got %q", got)
	}

	rules := dom.Rules(sheets[0])
	if len(rules) != 4 {
		t.Fatalf("main.css rules: got %d, want 4", len(rules))
	}
	wantTypes := []dom.RuleType{dom.CharsetRule, dom.ImportRule, dom.StyleRule, dom.MediaRule}
	for i, want := range wantTypes {
		if got := rules[i].Type(); got != want {
			t.Fatalf("rule %d type: got %d, want %d", i, got, want)
		}
	}

	imp := rules[1]
	if got := imp.Href(); got != "http://localhost:3000/css/theme.css" {
		t.Fatalf("import href: got %q", got)
	}
	if got := strings.Join(imp.Media(), ", "); got != "screen, print" {
		t.Fatalf("import media: got %q", got)
	}
	if imp.StyleSheet() == nil {
		t.Fatal("imported sheet not loaded")
	}
	if got := dom.Rules(imp.StyleSheet())[0].Style().Get("borderImage"); got == "" {
		t.Fatal("imported rule lost its border-image declaration")
	}

	nested := dom.NestedRules(rules[3])
	if len(nested) != 1 || nested[0].Type() != dom.StyleRule {
		t.Fatalf("media rules: got %d", len(nested))
	}
}

func TestElement_Properties(t *testing.T) {
	d, _, _ := newDoc(t, nil)

	img := d.ElementsByTagName("img")[0]
	if got := img.Property("src"); got != "http://localhost:3000/img/logo.png" {
		t.Fatalf("src: got %q", got)
	}
	if v, _ := img.Attribute("src"); v != "img/logo.png" {
		t.Fatalf("src attribute: got %q", v)
	}

	link := d.ElementsByTagName("link")[0]
	if link.Property("rel") != "stylesheet" {
		t.Fatalf("rel: got %q", link.Property("rel"))
	}
	if link.Property("disabled") != "" {
		t.Fatal("link should not be disabled")
	}
	link.SetProperty("disabled", "true")
	if link.Property("disabled") != "true" {
		t.Fatal("disabled not set")
	}
	if link.Key() != d.ElementsByTagName("link")[0].Key() {
		t.Fatal("element key not stable")
	}
}

func TestStyle_GetSet(t *testing.T) {
	d, _, journal := newDoc(t, nil)

	els, err := d.QuerySelectorAll("[style*=background]")
	if err != nil {
		t.Fatalf("QuerySelectorAll: %v", err)
	}
	if len(els) != 1 {
		t.Fatalf("matches: got %d, want 1", len(els))
	}
	st := els[0].Style()
	if got := st.Get("backgroundImage"); got != "url(/img/bg.png)" {
		t.Fatalf("backgroundImage: got %q", got)
	}

	st.Set("backgroundImage", "url(/img/bg.png?livereload=1)")
	attr, _ := els[0].Attribute("style")
	if !strings.Contains(attr, "background-image: url(/img/bg.png?livereload=1);") {
		t.Fatalf("style attribute: got %q", attr)
	}
	if !strings.Contains(attr, "color: red;") {
		t.Fatalf("style attribute lost color: %q", attr)
	}
	if got := journal.Filter(mutation.OpStyle); len(got) != 1 || got[0].Name != "background-image" {
		t.Fatalf("style records: got %+v", got)
	}
}

func TestCSSProperty(t *testing.T) {
	tests := map[string]string{
		"backgroundImage":   "background-image",
		"borderImage":       "border-image",
		"webkitBorderImage": "-webkit-border-image",
		"MozBorderImage":    "-moz-border-image",
		"color":             "color",
	}
	for in, want := range tests {
		if got := cssProperty(in); got != want {
			t.Errorf("cssProperty(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestQuerySelectorAll(t *testing.T) {
	d, _, _ := newDoc(t, nil)

	els, err := d.QuerySelectorAll("style[data-href]")
	if err != nil {
		t.Fatalf("style[data-href]: %v", err)
	}
	if len(els) != 1 {
		t.Fatalf("style[data-href]: got %d, want 1", len(els))
	}

	if _, err := d.QuerySelectorAll("div > p"); !errors.Is(err, dom.ErrUnsupported) {
		t.Fatalf("combinator: got %v, want ErrUnsupported", err)
	}

	d2, _, _ := newDoc(t, func(o *Options) { o.NoSelectors = true })
	if _, err := d2.QuerySelectorAll("img"); !errors.Is(err, dom.ErrUnsupported) {
		t.Fatalf("NoSelectors: got %v, want ErrUnsupported", err)
	}
}

func TestSheet_InsertDeleteRule(t *testing.T) {
	d, _, journal := newDoc(t, nil)
	sheet := d.StyleSheets()[0]

	if err := sheet.InsertRule(`@import url("/css/late.css") ;`, 1); err != nil {
		t.Fatalf("InsertRule: %v", err)
	}
	if err := sheet.DeleteRule(2); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	rules := dom.Rules(sheet)
	if len(rules) != 4 {
		t.Fatalf("rules: got %d, want 4", len(rules))
	}
	if got := rules[1].Href(); got != "http://localhost:3000/css/late.css" {
		t.Fatalf("swapped import href: got %q", got)
	}
	if rules[1].StyleSheet() == nil {
		t.Fatal("swapped import not loaded")
	}
	if len(journal.Filter(mutation.OpRuleInsert)) != 1 || len(journal.Filter(mutation.OpRuleDelete)) != 1 {
		t.Fatalf("rule records: got %+v", journal.Records())
	}

	if err := sheet.DeleteRule(10); err == nil {
		t.Fatal("DeleteRule out of range: want error")
	}
	if err := sheet.InsertRule(`a {} b {}`, 0); err == nil {
		t.Fatal("InsertRule with two rules: want error")
	}
}

func TestSheet_Inaccessible(t *testing.T) {
	d, _, _ := newDoc(t, func(o *Options) {
		o.Inaccessible = func(href string) bool { return strings.HasSuffix(href, "main.css") }
	})
	sheet := d.StyleSheets()[0]
	if _, err := sheet.CSSRules(); !errors.Is(err, dom.ErrInaccessible) {
		t.Fatalf("CSSRules: got %v, want ErrInaccessible", err)
	}
	if rules := dom.Rules(sheet); rules != nil {
		t.Fatalf("Rules: got %d rules, want nil", len(rules))
	}
}

func TestLink_AsyncLoad(t *testing.T) {
	d, clock, _ := newDoc(t, nil)
	head := d.ElementsByTagName("head")[0]

	link := d.CreateElement("link")
	link.SetProperty("rel", "stylesheet")
	link.SetProperty("href", "/css/late.css")
	loaded := 0
	link.OnLoad(func() { loaded++ })
	head.InsertBefore(link, nil)

	if link.Sheet() != nil {
		t.Fatal("sheet available before load delay")
	}
	clock.Advance(9 * time.Millisecond)
	if loaded != 0 {
		t.Fatal("loaded too early")
	}
	clock.Advance(time.Millisecond)
	if loaded != 1 || link.Sheet() == nil {
		t.Fatalf("after delay: loaded=%d sheet=%v", loaded, link.Sheet())
	}
	if got := len(d.StyleSheets()); got != 4 {
		t.Fatalf("StyleSheets: got %d, want 4", got)
	}
}

func TestLink_DetachedBeforeLoad(t *testing.T) {
	d, clock, _ := newDoc(t, nil)
	head := d.ElementsByTagName("head")[0]

	link := d.CreateElement("link")
	link.SetProperty("rel", "stylesheet")
	link.SetProperty("href", "/css/late.css")
	loaded := false
	link.OnLoad(func() { loaded = true })
	head.InsertBefore(link, d.ElementsByTagName("link")[0])
	if link.NextSibling().Key() != d.ElementsByTagName("link")[1].Key() {
		t.Fatal("link not inserted before the reference")
	}
	head.RemoveChild(link)
	if link.Parent() != nil {
		t.Fatal("removed link still has a parent")
	}

	clock.Advance(time.Second)
	if loaded || link.Sheet() != nil {
		t.Fatal("detached link loaded")
	}
}

func TestLink_SuppressedLoadEvent(t *testing.T) {
	d, clock, _ := newDoc(t, func(o *Options) { o.SuppressLoadEvents = true })
	link := d.CreateElement("link")
	link.SetProperty("rel", "stylesheet")
	link.SetProperty("href", "/css/late.css")
	fired := false
	link.OnLoad(func() { fired = true })
	d.ElementsByTagName("head")[0].InsertBefore(link, nil)

	clock.Advance(10 * time.Millisecond)
	if link.Sheet() == nil {
		t.Fatal("sheet not loaded")
	}
	if fired {
		t.Fatal("load event fired while suppressed")
	}
}

func TestCloneNode(t *testing.T) {
	d, _, _ := newDoc(t, nil)
	link := d.ElementsByTagName("link")[0]
	clone := link.CloneNode()
	if clone.Key() == link.Key() {
		t.Fatal("clone shares the original's key")
	}
	if clone.Parent() != nil || clone.Sheet() != nil {
		t.Fatal("clone should be detached and unloaded")
	}
	if clone.Property("href") != link.Property("href") {
		t.Fatalf("clone href: got %q", clone.Property("href"))
	}
	clone.SetProperty("href", "/css/other.css")
	if link.Property("href") == clone.Property("href") {
		t.Fatal("clone attributes alias the original's")
	}
}

func TestReloadAndStyleFix(t *testing.T) {
	d, _, journal := newDoc(t, func(o *Options) { o.StyleFix = true })
	d.Reload()
	d.Reload()
	if d.Reloads() != 2 || len(journal.Filter(mutation.OpReload)) != 2 {
		t.Fatalf("Reloads: got %d", d.Reloads())
	}
	fix := d.StyleFix()
	if fix == nil {
		t.Fatal("StyleFix: got nil")
	}
	fix.Link(d.ElementsByTagName("link")[0])
	if len(d.Fixer().Linked) != 1 {
		t.Fatal("polyfill call not recorded")
	}

	d2, _, _ := newDoc(t, nil)
	if d2.StyleFix() != nil {
		t.Fatal("StyleFix without polyfill: want nil")
	}
	if !strings.Contains(d2.HTML(), `<link rel="stylesheet" href="/css/main.css"/>`) {
		t.Fatalf("HTML: %s", d2.HTML())
	}
}
