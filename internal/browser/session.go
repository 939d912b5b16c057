package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/livereload/dom/roddom"
	"github.com/hazyhaar/livereload/internal/sink"
	"github.com/hazyhaar/livereload/reloader"
	"github.com/hazyhaar/livereload/timer"
)

// ErrStopped is returned when a change reaches a session whose loop has
// shut down.
var ErrStopped = errors.New("browser: session stopped")

// session follows one page. Everything except url and loop is owned by the
// loop goroutine.
type session struct {
	url    string
	loop   *timer.Loop
	logger *slog.Logger
	ctx    context.Context

	page *rod.Page
	rel  *reloader.Reloader
	gen  int
}

// bind attaches a fresh document and engine to page. The previous engine
// and its pending timers are abandoned with the document they served.
func (s *session) bind(page *rod.Page) {
	s.page = page
	s.rel = nil
	doc, err := roddom.New(s.ctx, page, roddom.Config{
		Post:       s.loop.Post,
		OnNavigate: s.navigated,
		Logger:     s.logger,
	})
	if err != nil {
		s.logger.Warn("browser: bind document", "url", s.url, "error", err)
		return
	}
	rel, err := reloader.New(reloader.Config{Document: doc, Scheduler: s.loop, Logger: s.logger})
	if err != nil {
		s.logger.Warn("browser: bind reloader", "url", s.url, "error", err)
		return
	}
	s.rel = rel
	s.logger.Debug("browser: document bound", "url", s.url, "generation", s.gen)
}

// navigated runs on the loop after the engine fell back to a page reload.
func (s *session) navigated() {
	s.rel = nil
	s.gen++
	gen, page := s.gen, s.page
	go func() {
		if err := waitLoad(s.ctx, page); err != nil {
			s.logger.Warn("browser: wait reload", "url", s.url, "error", err)
		}
		s.loop.Post(func() {
			if s.gen == gen {
				s.bind(page)
			}
		})
	}()
}

// replace swaps in the tab reopened after a Chrome recycle.
func (s *session) replace(page *rod.Page) bool {
	return s.loop.Post(func() {
		s.gen++
		s.bind(page)
	})
}

type delivery struct {
	outcome reloader.Outcome
	bound   bool
}

// deliver runs the engine for change on the session loop.
func (s *session) deliver(ctx context.Context, change reloader.Change) (delivery, error) {
	res := make(chan delivery, 1)
	ok := s.loop.Post(func() {
		if s.rel == nil {
			res <- delivery{}
			return
		}
		res <- delivery{outcome: s.rel.Handle(change), bound: true}
	})
	if !ok {
		return delivery{}, ErrStopped
	}
	select {
	case d := <-res:
		return d, nil
	case <-ctx.Done():
		return delivery{}, ctx.Err()
	case <-s.loop.Done():
		return delivery{}, ErrStopped
	}
}

// SessionsConfig configures the browser sessions.
type SessionsConfig struct {
	Browser Config
	// Pages are the URLs to keep open, one tab each.
	Pages []string
	// Stealth creates tabs through go-rod/stealth.
	Stealth bool
	Logger  *slog.Logger
}

// Sessions keeps one engine-driven tab per page and delivers changes to all
// of them. It is a sink.Sink.
type Sessions struct {
	cfg    SessionsConfig
	mgr    *Manager
	logger *slog.Logger

	mu       sync.RWMutex
	sessions []*session
}

// NewSessions creates the sessions. Nothing is launched until Run.
func NewSessions(cfg SessionsConfig) *Sessions {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Browser.Logger == nil {
		cfg.Browser.Logger = cfg.Logger
	}
	return &Sessions{cfg: cfg, mgr: NewManager(cfg.Browser), logger: cfg.Logger}
}

// Run starts Chrome, opens every page and serves changes until ctx is
// cancelled.
func (s *Sessions) Run(ctx context.Context) error {
	b, err := s.mgr.Start(ctx)
	if err != nil {
		return err
	}
	defer s.mgr.Close()
	s.mgr.OnRecycle(s.reopen)

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range s.cfg.Pages {
		sess := &session{
			url:    u,
			loop:   timer.NewLoop(0, s.logger),
			logger: s.logger.With("page", u),
			ctx:    gctx,
		}
		g.Go(func() error {
			sess.loop.Run(gctx)
			return nil
		})

		page, err := openTab(gctx, b, u, s.cfg.Stealth, s.logger)
		if err != nil {
			s.logger.Error("browser: open page", "url", u, "error", err)
			continue
		}
		sess.loop.Post(func() { sess.bind(page) })

		s.mu.Lock()
		s.sessions = append(s.sessions, sess)
		s.mu.Unlock()
	}
	s.logger.Info("browser: sessions started", "pages", len(s.cfg.Pages))

	<-gctx.Done()
	return g.Wait()
}

func (s *Sessions) reopen(ctx context.Context, b *rod.Browser) {
	s.mu.RLock()
	sessions := append([]*session(nil), s.sessions...)
	s.mu.RUnlock()
	for _, sess := range sessions {
		page, err := openTab(ctx, b, sess.url, s.cfg.Stealth, s.logger)
		if err != nil {
			s.logger.Error("browser: reopen page", "url", sess.url, "error", err)
			continue
		}
		sess.replace(page)
	}
}

// Send hands change to the engine of every bound page.
func (s *Sessions) Send(ctx context.Context, change reloader.Change) (sink.Report, error) {
	s.mu.RLock()
	sessions := append([]*session(nil), s.sessions...)
	s.mu.RUnlock()

	var (
		rep      sink.Report
		firstErr error
	)
	for _, sess := range sessions {
		d, err := sess.deliver(ctx, change)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("browser: %s: %w", sess.url, err)
			}
			continue
		}
		if !d.bound {
			s.logger.Debug("browser: page still reloading, change skipped", "url", sess.url, "path", change.Path)
			continue
		}
		rep.Recipients++
		rep.Outcomes = append(rep.Outcomes, d.outcome)
	}
	return rep, firstErr
}

// Close shuts Chrome down.
func (s *Sessions) Close() error {
	return s.mgr.Close()
}

var _ sink.Sink = (*Sessions)(nil)
