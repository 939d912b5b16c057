// Package livereload watches a site directory and pushes every change to
// the browsers showing it: LiveReload protocol clients over a websocket and
// Chrome tabs driven in-process by the reload engine. Each change is
// journalled and counted.
package livereload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/livereload/internal/browser"
	"github.com/hazyhaar/livereload/internal/config"
	"github.com/hazyhaar/livereload/internal/fswatch"
	"github.com/hazyhaar/livereload/internal/journal"
	"github.com/hazyhaar/livereload/internal/metrics"
	"github.com/hazyhaar/livereload/internal/notify"
	"github.com/hazyhaar/livereload/internal/server"
	"github.com/hazyhaar/livereload/internal/sink"
	"github.com/hazyhaar/livereload/reloader"
)

const (
	pruneEvery      = time.Hour
	shutdownTimeout = 5 * time.Second
)

// Service is the running livereload server.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	watcher  *fswatch.Watcher
	hub      *notify.Hub
	sessions *browser.Sessions
	router   *sink.Router
	journal  *journal.Journal
	metrics  *metrics.Metrics
	mcp      *mcp.Server

	extra     []sink.Sink
	noBrowser bool
}

// Option configures a Service.
type Option func(*Service)

// WithSink adds an output backend next to the configured ones.
func WithSink(s sink.Sink) Option {
	return func(svc *Service) { svc.extra = append(svc.extra, s) }
}

// WithJournal uses an already opened journal instead of opening
// cfg.Journal.Path.
func WithJournal(j *journal.Journal) Option {
	return func(svc *Service) { svc.journal = j }
}

// WithoutBrowser disables the Chrome sessions whatever the configuration says.
func WithoutBrowser() Option {
	return func(svc *Service) { svc.noBrowser = true }
}

// New validates cfg and assembles the service. Nothing runs until Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, logger: logger, metrics: metrics.New()}
	for _, o := range opts {
		o(s)
	}

	if s.journal == nil {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("livereload: journal: %w", err)
		}
		s.journal = j
	}

	exclude := cfg.Watch.Exclude
	if p := journalPattern(cfg.Root, cfg.Journal.Path); p != "" {
		exclude = append(append([]string(nil), exclude...), p)
	}
	w, err := fswatch.New(fswatch.Config{
		Root:     cfg.Root,
		Include:  cfg.Watch.Include,
		Exclude:  exclude,
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
	})
	if err != nil {
		s.journal.Close()
		return nil, err
	}
	s.watcher = w

	s.hub = notify.NewHub(notify.Config{OnClients: s.metrics.SetClients, Logger: logger})
	s.router = sink.NewRouter(logger, s.hub)

	if cfg.Browser.Enabled && !s.noBrowser && len(cfg.Browser.Pages) > 0 {
		s.sessions = browser.NewSessions(browser.SessionsConfig{
			Browser: browser.Config{
				RemoteURL:       cfg.Browser.Remote,
				Headless:        cfg.Browser.Headless == nil || *cfg.Browser.Headless,
				RecycleInterval: cfg.Browser.RecycleInterval,
			},
			Pages:   cfg.Browser.Pages,
			Stealth: cfg.Browser.Stealth,
			Logger:  logger,
		})
		s.router.Add(s.sessions)
	}
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			s.router.Add(sink.NewStdout(nil))
		case "webhook":
			s.router.Add(sink.NewWebhook(sc.URL, sink.WithWebhookLogger(logger)))
		}
	}
	for _, x := range s.extra {
		s.router.Add(x)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "livereload", Version: "1.0.0"}, nil)
	s.RegisterMCP(s.mcp)
	return s, nil
}

// journalPattern returns an exclude pattern covering the journal database
// and its WAL files when they live under root.
func journalPattern(root, dbPath string) string {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel) + "*"
}

// Trigger broadcasts a change to path and journals what it reached. A sink
// failure is returned together with the entry.
func (s *Service) Trigger(ctx context.Context, path string) (*journal.Entry, error) {
	change := reloader.Change{Path: path, Options: s.cfg.Options()}
	rep, sendErr := s.router.Send(ctx, change)
	s.metrics.ObserveChange(rep.Outcomes)

	entry, err := s.journal.Record(ctx, change, rep.Outcomes, rep.Recipients)
	if err != nil {
		return nil, errors.Join(sendErr, err)
	}
	s.logger.Info("livereload: change broadcast", "path", path, "recipients", rep.Recipients, "entry", entry.ID)
	return entry, sendErr
}

// History returns the most recent journal entries, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*journal.Entry, error) {
	return s.journal.Recent(ctx, limit)
}

// Handler returns the HTTP surface: websocket, API, metrics, MCP, and the
// static site.
func (s *Service) Handler() http.Handler {
	return server.New(server.Config{
		Root:       s.cfg.Root,
		Backend:    s,
		LiveReload: s.hub,
		Metrics:    s.metrics.Handler(),
		MCP: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return s.mcp
		}, nil),
		Logger: s.logger,
	})
}

// MCP returns the MCP server carrying the livereload tools.
func (s *Service) MCP() *mcp.Server { return s.mcp }

// Run serves until ctx is cancelled or a component fails.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.watcher.Run(gctx, func(paths []string) {
			for _, p := range paths {
				if _, err := s.Trigger(gctx, p); err != nil {
					s.logger.Warn("livereload: trigger", "path", p, "error", err)
				}
			}
		})
	})

	if s.sessions != nil {
		g.Go(func() error { return s.sessions.Run(gctx) })
	}

	g.Go(func() error {
		s.prune(gctx)
		ticker := time.NewTicker(pruneEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.prune(gctx)
			}
		}
	})

	srv := &http.Server{Addr: s.cfg.Listen, Handler: s.Handler()}
	g.Go(func() error {
		s.logger.Info("livereload: listening", "addr", s.cfg.Listen, "root", s.cfg.Root)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("livereload: listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Service) prune(ctx context.Context) {
	n, err := s.journal.Prune(ctx, s.cfg.Journal.Retention)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("livereload: prune journal", "error", err)
		}
		return
	}
	if n > 0 {
		s.logger.Info("livereload: journal pruned", "entries", n)
	}
}

// Close releases the watcher, sinks and journal.
func (s *Service) Close() error {
	return errors.Join(s.watcher.Close(), s.router.Close(), s.journal.Close())
}
