// Package memdom is an in-memory dom.Document. HTML is parsed with
// golang.org/x/net/html and stylesheets with github.com/aymerick/douceur.
// Linked stylesheets inserted after parsing load asynchronously through the
// document's scheduler, so tests drive the whole reload lifecycle with
// simulated time.
package memdom

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/livereload/dom"
	"github.com/hazyhaar/livereload/dom/mutation"
	"github.com/hazyhaar/livereload/timer"
)

// ErrNotFound is returned by Fetchers for unknown resources.
var ErrNotFound = errors.New("memdom: resource not found")

// Fetcher returns the body of the stylesheet at an absolute URL.
type Fetcher func(rawURL string) (string, error)

// Options configures a Document.
type Options struct {
	// BaseURL resolves relative href and src values. Default: http://localhost/.
	BaseURL string

	// UserAgent is returned by Document.UserAgent.
	UserAgent string

	// Fetch loads stylesheet bodies. Default: every fetch fails.
	Fetch Fetcher

	// Scheduler delivers asynchronous link loads. Required when links are
	// inserted after parsing.
	Scheduler timer.Scheduler

	// LoadDelay is the time a newly inserted link takes to load.
	LoadDelay time.Duration

	// SuppressLoadEvents makes links load without firing onload, forcing
	// callers onto polling.
	SuppressLoadEvents bool

	// NoSelectors makes QuerySelectorAll return dom.ErrUnsupported.
	NoSelectors bool

	// Inaccessible reports sheets whose rules cannot be read.
	Inaccessible func(href string) bool

	// StyleFix installs a recording prefix-free polyfill.
	StyleFix bool

	// Journal receives every mutation. Optional.
	Journal *mutation.Log

	Logger *slog.Logger
}

// Document is an in-memory dom.Document. It is not safe for concurrent use;
// drive it from one goroutine or one timer.Loop.
type Document struct {
	opts     Options
	root     *html.Node
	base     string
	logger   *slog.Logger
	elements map[*html.Node]*element
	seq      int
	reloads  int
	fix      *StyleFixRecorder
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts Options) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("memdom: parse: %w", err)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost/"
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("memdom: base url: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	d := &Document{
		opts:     opts,
		root:     root,
		base:     opts.BaseURL,
		logger:   opts.Logger,
		elements: make(map[*html.Node]*element),
	}
	if opts.StyleFix {
		d.fix = &StyleFixRecorder{}
	}
	d.loadInitialSheets()
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts Options) (*Document, error) {
	return Parse(strings.NewReader(s), opts)
}

// loadInitialSheets attaches the sheets of every link and style element
// present at parse time, synchronously and without load events.
func (d *Document) loadInitialSheets() {
	walk(d.root, func(n *html.Node) {
		switch n.Data {
		case "style":
			el := d.wrap(n)
			el.sheet = d.newSheet("", textContent(n), 0)
		case "link":
			el := d.wrap(n)
			if !el.isStylesheetLink() {
				return
			}
			href := el.Property("href")
			if text, err := d.fetch(href); err == nil {
				el.sheet = d.newSheet(href, text, 0)
			} else {
				d.logger.Debug("memdom: fetch link", "href", href, "error", err)
			}
		}
	})
}

func (d *Document) ElementsByTagName(tag string) []dom.Element {
	tag = strings.ToLower(tag)
	var out []dom.Element
	walk(d.root, func(n *html.Node) {
		if n.Data == tag {
			out = append(out, d.wrap(n))
		}
	})
	return out
}

func (d *Document) QuerySelectorAll(selector string) ([]dom.Element, error) {
	if d.opts.NoSelectors {
		return nil, fmt.Errorf("memdom: querySelectorAll: %w", dom.ErrUnsupported)
	}
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	var out []dom.Element
	walk(d.root, func(n *html.Node) {
		if sel.matches(n) {
			out = append(out, d.wrap(n))
		}
	})
	return out, nil
}

func (d *Document) StyleSheets() []dom.StyleSheet {
	var out []dom.StyleSheet
	walk(d.root, func(n *html.Node) {
		if n.Data != "link" && n.Data != "style" {
			return
		}
		if el := d.wrap(n); el.sheet != nil {
			out = append(out, el.sheet)
		}
	})
	return out
}

func (d *Document) CreateElement(tag string) dom.Element {
	n := &html.Node{Type: html.ElementNode, Data: strings.ToLower(tag)}
	return d.wrap(n)
}

func (d *Document) UserAgent() string { return d.opts.UserAgent }

func (d *Document) StyleFix() dom.StyleFix {
	if d.fix == nil {
		return nil
	}
	return d.fix
}

func (d *Document) Reload() {
	d.reloads++
	d.record(mutation.Record{Op: mutation.OpReload, Target: "document"})
}

// Reloads returns how many times Reload was called.
func (d *Document) Reloads() int { return d.reloads }

// Fixer returns the recording polyfill, nil unless Options.StyleFix is set.
func (d *Document) Fixer() *StyleFixRecorder { return d.fix }

// HTML serialises the current tree.
func (d *Document) HTML() string {
	var b strings.Builder
	if err := html.Render(&b, d.root); err != nil {
		return ""
	}
	return b.String()
}

func (d *Document) record(r mutation.Record) {
	if d.opts.Journal != nil {
		d.opts.Journal.Add(r)
	}
}

func (d *Document) nextKey(prefix string) string {
	d.seq++
	return prefix + strconv.Itoa(d.seq)
}

func (d *Document) fetch(rawURL string) (string, error) {
	if d.opts.Fetch == nil {
		return "", fmt.Errorf("memdom: fetch %s: %w", rawURL, ErrNotFound)
	}
	return d.opts.Fetch(rawURL)
}

// resolveFrom resolves ref against base, returning ref unchanged when either
// does not parse.
func (d *Document) resolveFrom(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// attached reports whether n is part of the document tree.
func (d *Document) attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// scheduleLoad loads a link inserted after parsing, then fires its load
// event. A link detached before the load completes never loads.
func (d *Document) scheduleLoad(el *element) {
	if d.opts.Scheduler == nil {
		d.logger.Warn("memdom: link inserted without a scheduler", "key", el.key)
		return
	}
	href := el.Property("href")
	d.opts.Scheduler.Schedule(d.opts.LoadDelay, func() {
		if !d.attached(el.node) || el.Property("href") != href {
			return
		}
		text, err := d.fetch(href)
		if err != nil {
			d.logger.Debug("memdom: fetch link", "href", href, "error", err)
			return
		}
		el.sheet = d.newSheet(href, text, 0)
		if d.opts.SuppressLoadEvents {
			return
		}
		for _, fn := range el.onload {
			fn()
		}
	})
}

// FetchMap returns a Fetcher serving bodies keyed by URL path ("/css/a.css").
// Query strings and fragments are ignored.
func FetchMap(files map[string]string) Fetcher {
	return func(rawURL string) (string, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("memdom: fetch %s: %w", rawURL, err)
		}
		body, ok := files[u.Path]
		if !ok {
			return "", fmt.Errorf("memdom: fetch %s: %w", rawURL, ErrNotFound)
		}
		return body, nil
	}
}

// StyleFixRecorder stands in for the prefix-free polyfill and records the
// keys of the links it was asked to process.
type StyleFixRecorder struct {
	Linked []string
}

func (f *StyleFixRecorder) Link(el dom.Element) {
	f.Linked = append(f.Linked, el.Key())
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
