package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/livereload/reloader"
)

// Router fans out changes to all configured sinks. One sink error does not
// block the others: errors are logged and the first encountered is
// returned alongside the merged report.
type Router struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add registers another sink.
func (r *Router) Add(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

func (r *Router) Send(ctx context.Context, change reloader.Change) (Report, error) {
	r.mu.RLock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.RUnlock()

	var (
		report   Report
		firstErr error
	)
	for _, s := range sinks {
		rep, err := s.Send(ctx, change)
		report.merge(rep)
		if err != nil {
			r.logger.Warn("sink: send change failed", "path", change.Path, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return report, firstErr
}

func (r *Router) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
