package timer

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by simulated time. Callbacks run on the
// goroutine calling Advance, in due-time order, FIFO among equal times.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	m       *Manual
	at      time.Time
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewManual creates a Manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the simulated current time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Schedule registers fn to run once the simulated clock passes d.
func (m *Manual) Schedule(d time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, at: m.now.Add(d), seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the clock forward by d, running every callback that falls
// due, including callbacks scheduled by callbacks within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.next(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// Pending returns the number of callbacks still waiting to run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// next pops the earliest live task due at or before target and moves the
// clock to its due time.
func (m *Manual) next(target time.Time) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.tasks = live

	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].at.Equal(m.tasks[j].at) {
			return m.tasks[i].seq < m.tasks[j].seq
		}
		return m.tasks[i].at.Before(m.tasks[j].at)
	})

	if len(m.tasks) == 0 || m.tasks[0].at.After(target) {
		return nil
	}
	t := m.tasks[0]
	t.fired = true
	m.now = t.at
	return t
}
