// Package schedule provides deadline-based one-shot and repeating timers
// whose expected fire time can be inspected after they are armed.
package schedule

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Scheduler creates timers on a clock
type Scheduler struct {
	clock clockwork.Clock
}

// New creates a scheduler backed by clock
func New(clock clockwork.Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Clock returns the clock timers are measured against
func (s *Scheduler) Clock() clockwork.Clock {
	return s.clock
}

// After calls fn once, d from now
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	return s.start(d, 0, fn)
}

// Every calls fn every d, starting d from now. It panics if d is not positive.
func (s *Scheduler) Every(d time.Duration, fn func()) *Timer {
	if d <= 0 {
		panic("schedule: non-positive interval for Every")
	}
	return s.start(d, d, fn)
}

func (s *Scheduler) start(d, interval time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	t := &Timer{
		id:       uuid.NewString(),
		clock:    s.clock,
		fn:       fn,
		interval: interval,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.arm(s.clock.Now(), d)
	return t
}

// Timer is a scheduled wake-up. The zero value is not usable.
type Timer struct {
	id       string
	clock    clockwork.Clock
	fn       func()
	interval time.Duration

	mu       sync.Mutex
	deadline time.Time
	timer    clockwork.Timer
	done     bool
}

// arm must be called with mu held
func (t *Timer) arm(from time.Time, d time.Duration) {
	// Deadlines are compared against wall clock readings, so drop the
	// monotonic part: it stops advancing while the machine is suspended.
	t.deadline = from.Add(d).Round(0)
	// Callbacks run off the clock's goroutine so they may take locks
	// that are held by whoever is stopping the timer.
	t.timer = t.clock.AfterFunc(d, func() { go t.fire() })
}

func (t *Timer) fire() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	if t.interval > 0 {
		now := t.clock.Now()
		next := t.deadline.Add(t.interval)
		if !next.After(now) {
			// Fell behind (suspend, clock jump): restart the cadence instead of bursting
			next = now.Add(t.interval)
		}
		t.arm(now, next.Sub(now))
	} else {
		t.done = true
	}
	t.mu.Unlock()

	t.fn()
}

// ID returns an opaque identifier unique to this timer
func (t *Timer) ID() string {
	return t.id
}

// Deadline returns the wall clock time the timer is expected to fire next
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// Active reports whether the timer can still fire
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.done
}

// Stop cancels the timer. It reports whether the timer was still active.
// Calling Stop more than once is safe.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}
