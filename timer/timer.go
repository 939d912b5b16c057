// Package timer provides the deferred-callback primitives the reload engine
// is built on. A Loop runs every callback on one goroutine, the way a
// browser runs page scripts on its UI thread, so callers never lock the
// document they mutate. Manual replaces wall-clock time in tests.
package timer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handle cancels a scheduled callback.
type Handle interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the callback before it ran.
	Stop() bool
}

// Scheduler runs fn once after d has elapsed.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Handle
}

// Func adapts a plain function to the Scheduler interface.
type Func func(d time.Duration, fn func()) Handle

func (f Func) Schedule(d time.Duration, fn func()) Handle { return f(d, fn) }

// Loop serialises callbacks on a single goroutine. Post and Schedule are
// safe for concurrent use; callbacks themselves never run concurrently.
type Loop struct {
	queue  chan func()
	logger *slog.Logger

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewLoop creates a Loop with the given queue capacity (default 256).
func NewLoop(capacity int, logger *slog.Logger) *Loop {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  make(chan func(), capacity),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run executes queued callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.queue:
			l.call(fn)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post queues fn to run on the loop goroutine. It reports false when the
// loop has stopped and fn was dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return false
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

const (
	taskPending int32 = iota
	taskStopped
	taskRan
)

// loopTask is a Loop callback that can be stopped until it starts running,
// including after its timer fired and it sits in the queue.
type loopTask struct {
	timer *time.Timer
	state atomic.Int32
}

func (t *loopTask) Stop() bool {
	if !t.state.CompareAndSwap(taskPending, taskStopped) {
		return false
	}
	t.timer.Stop()
	return true
}

// Schedule posts fn to the loop once d has elapsed.
func (l *Loop) Schedule(d time.Duration, fn func()) Handle {
	task := &loopTask{}
	task.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if task.state.CompareAndSwap(taskPending, taskRan) {
				fn()
			}
		})
	})
	return task
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("timer: callback panicked", "panic", r)
		}
	}()
	fn()
}
