package monitoring

import (
	"sort"
	"sync"
	"time"
)

// Clock is the scheduling primitive behind evaluation loops, escalation
// delays and rate-limit windows. Production code uses the system clock;
// tests drive a ManualClock for deterministic timing.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	// AfterFunc arms a one-shot timer. The returned handle's Stop is
	// idempotent; stopping an already-fired timer is a no-op.
	AfterFunc(d time.Duration, fn func()) TimerHandle
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TimerHandle cancels a pending AfterFunc. Stop reports whether the call
// prevented the function from running.
type TimerHandle interface {
	Stop() bool
}

// --- system clock ---

type systemClock struct{}

// NewSystemClock returns a Clock backed by package time.
func NewSystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

func (systemClock) AfterFunc(d time.Duration, fn func()) TimerHandle {
	return &systemTimer{t: time.AfterFunc(d, fn)}
}

type systemTicker struct{ t *time.Ticker }

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }

type systemTimer struct {
	mu      sync.Mutex
	t       *time.Timer
	stopped bool
}

func (s *systemTimer) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.stopped = true
	return s.t.Stop()
}

// --- manual clock ---

// ManualClock is a deterministic Clock advanced explicitly by tests.
// Advance fires due timers synchronously in timestamp order and delivers
// ticker ticks, so escalation and rate-limit behavior can be asserted
// without sleeping.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*manualTimer
	tickers []*manualTicker
	seq     int
}

// NewManualClock creates a manual clock starting at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{
		clock:    c,
		interval: d,
		next:     c.now.Add(d),
		ch:       make(chan time.Time, 64),
	}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) TimerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), fn: fn, seq: c.seq}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing timers and tickers that come due.
// Timer callbacks run synchronously on the caller's goroutine, outside the
// clock lock, so they may arm new timers.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		timer := c.popNextDue(target)
		if timer == nil {
			break
		}
		timer.fire()
	}

	c.mu.Lock()
	c.now = target
	for _, t := range c.tickers {
		t.deliverUpTo(target)
	}
	c.mu.Unlock()
}

// popNextDue removes and returns the earliest unfired timer at or before
// target, moving the clock to its deadline.
func (c *ManualClock) popNextDue(target time.Time) *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
	for i, t := range c.timers {
		if t.at.After(target) {
			break
		}
		c.timers = append(c.timers[:i], c.timers[i+1:]...)
		if t.at.After(c.now) {
			c.now = t.at
		}
		// deliver ticks due before this timer so ordering stays consistent
		for _, tk := range c.tickers {
			tk.deliverUpTo(c.now)
		}
		return t
	}
	return nil
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Time
	fn      func()
	seq     int
	mu      sync.Mutex
	fired   bool
	stopped bool
}

func (t *manualTimer) fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	fn := t.fn
	t.mu.Unlock()
	fn()
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type manualTicker struct {
	clock    *ManualClock
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// deliverUpTo pushes all ticks due at or before the given instant. Caller
// holds the clock lock. Ticks are dropped if the buffer is full, matching
// time.Ticker semantics for slow receivers.
func (t *manualTicker) deliverUpTo(now time.Time) {
	for !t.stopped && !t.next.After(now) {
		select {
		case t.ch <- t.next:
		default:
		}
		t.next = t.next.Add(t.interval)
	}
}
