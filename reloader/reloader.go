// Package reloader decides how a document reacts to a changed file: it
// reattaches the matching stylesheet, rewrites matching image references, or
// falls back to a full page reload. Plugins registered with AddPlugin may
// claim a change before any of that runs.
//
// A Reloader is bound to one document and is not safe for concurrent use:
// Reload and every scheduled callback must run on the document's single
// event loop (see timer.Loop).
package reloader

import (
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/hazyhaar/livereload/cachebust"
	"github.com/hazyhaar/livereload/dom"
	"github.com/hazyhaar/livereload/timer"
)

const (
	// DefaultStylesheetReloadTimeout bounds the wait for a replacement
	// stylesheet to load.
	DefaultStylesheetReloadTimeout = 15 * time.Second

	// ImportCacheWait is how long a replaced @import target is pre-cached
	// through a temporary link before each rule swap.
	ImportCacheWait = 200 * time.Millisecond

	// PollInterval is the stylesheet load polling period.
	PollInterval = 50 * time.Millisecond

	webKitSettleDelay  = 5 * time.Millisecond
	defaultSettleDelay = 200 * time.Millisecond
)

var (
	cssExtRe   = regexp.MustCompile(`(?i)\.css$`)
	imageExtRe = regexp.MustCompile(`(?i)\.(jpe?g|png|gif)$`)
)

// Options tunes a single Reload call.
type Options struct {
	LiveCSS bool
	LiveImg bool

	// StylesheetReloadTimeout defaults to DefaultStylesheetReloadTimeout.
	StylesheetReloadTimeout time.Duration

	// ServerURL and OverrideURL route generated URLs through a local
	// proxy. The override applies only when OverrideURL is set.
	ServerURL   string
	OverrideURL string
}

// Change is a changed path with the options to handle it.
type Change struct {
	Path    string
	Options Options
}

// Plugin intercepts changes before the built-in handling. Returning true
// claims the change.
type Plugin interface {
	Reload(path string, opts Options) bool
}

// PluginFunc adapts a function to Plugin.
type PluginFunc func(path string, opts Options) bool

func (f PluginFunc) Reload(path string, opts Options) bool { return f(path, opts) }

// Outcome is how a change was handled.
type Outcome int

const (
	OutcomePage Outcome = iota
	OutcomeStylesheet
	OutcomeImages
	OutcomePlugin
)

func (o Outcome) String() string {
	switch o {
	case OutcomePage:
		return "page"
	case OutcomeStylesheet:
		return "stylesheet"
	case OutcomeImages:
		return "images"
	case OutcomePlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// Config configures a Reloader.
type Config struct {
	Document  dom.Document
	Scheduler timer.Scheduler

	// Now supplies cache-busting tokens. Default: time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Reloader is the reload decision engine for one document.
type Reloader struct {
	doc     dom.Document
	sched   timer.Scheduler
	now     func() time.Time
	logger  *slog.Logger
	plugins []Plugin
	reg     *registry

	// knownToSupportCSSOnLoad is set by the first native load event of a
	// replacement link; polling is skipped from then on.
	knownToSupportCSSOnLoad bool
}

// New creates a Reloader bound to cfg.Document.
func New(cfg Config) (*Reloader, error) {
	if cfg.Document == nil {
		return nil, errors.New("reloader: nil document")
	}
	if cfg.Scheduler == nil {
		return nil, errors.New("reloader: nil scheduler")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reloader{
		doc:    cfg.Document,
		sched:  cfg.Scheduler,
		now:    cfg.Now,
		logger: cfg.Logger,
		reg:    newRegistry(),
	}, nil
}

// AddPlugin appends p to the plugin list. Plugins are offered each change in
// registration order.
func (r *Reloader) AddPlugin(p Plugin) {
	r.plugins = append(r.plugins, p)
}

// Reload handles a change to path. It never fails: anything it cannot do
// precisely degrades to a coarser refresh.
func (r *Reloader) Reload(path string, opts Options) Outcome {
	if opts.StylesheetReloadTimeout <= 0 {
		opts.StylesheetReloadTimeout = DefaultStylesheetReloadTimeout
	}

	for i, p := range r.plugins {
		if p.Reload(path, opts) {
			r.logger.Debug("reloader: change claimed by plugin", "path", path, "plugin", i)
			return OutcomePlugin
		}
	}

	call := &reload{Reloader: r, path: path, opts: opts, gen: r.generator(opts)}

	if opts.LiveCSS && cssExtRe.MatchString(path) {
		if call.reloadStylesheet() {
			return OutcomeStylesheet
		}
	}
	if opts.LiveImg && imageExtRe.MatchString(path) {
		call.reloadImages()
		return OutcomeImages
	}

	r.logger.Debug("reloader: full page reload", "path", path)
	r.doc.Reload()
	return OutcomePage
}

// Handle is Reload over a Change.
func (r *Reloader) Handle(c Change) Outcome {
	return r.Reload(c.Path, c.Options)
}

func (r *Reloader) generator(opts Options) *cachebust.Generator {
	return &cachebust.Generator{
		Override: cachebust.Override{ServerURL: opts.ServerURL, OverrideURL: opts.OverrideURL},
		Now:      r.now,
		Logger:   r.logger,
	}
}

// reload carries the state of one Reload call into the handlers and the
// callbacks they schedule.
type reload struct {
	*Reloader
	path string
	opts Options
	gen  *cachebust.Generator

	pageReloaded bool
}

// reloadPage falls back to a navigation reload when a precise refresh
// cannot be set up. The page is reloaded at most once per call.
func (c *reload) reloadPage() {
	if c.pageReloaded {
		return
	}
	c.pageReloaded = true
	c.doc.Reload()
}
