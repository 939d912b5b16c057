package sink

import (
	"context"

	"github.com/hazyhaar/livereload/reloader"
)

// ChangeFunc is called for each change.
type ChangeFunc func(ctx context.Context, change reloader.Change) (Report, error)

// Callback delivers changes via Go function calls.
type Callback struct {
	fn ChangeFunc
}

// NewCallback creates a Callback sink. A nil fn drops every change.
func NewCallback(fn ChangeFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, change reloader.Change) (Report, error) {
	if c.fn == nil {
		return Report{}, nil
	}
	return c.fn(ctx, change)
}

func (c *Callback) Close() error { return nil }
