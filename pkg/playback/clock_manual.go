package playback

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a Clock which moves only when Advance is called. Timer
// callbacks are executed synchronously by Advance, ticks are delivered
// without blocking (a tick is dropped if the previous one was not
// consumed yet, as time.Ticker does).
type ManualClock struct {
	locker  sync.Mutex
	now     time.Time
	timers  []*manualTimer
	tickers []*manualTicker
}

var _ Clock = (*ManualClock)(nil)

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.locker.Lock()
	defer c.locker.Unlock()
	t := &manualTimer{clock: c, deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("non-positive interval for NewTicker")
	}
	c.locker.Lock()
	defer c.locker.Unlock()
	t := &manualTicker{clock: c, interval: d, next: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// PendingTimers returns the amount of timers which were neither fired
// nor stopped.
func (c *ManualClock) PendingTimers() int {
	c.locker.Lock()
	defer c.locker.Unlock()
	return len(c.timers)
}

// ActiveTickers returns the amount of tickers which were not stopped.
func (c *ManualClock) ActiveTickers() int {
	c.locker.Lock()
	defer c.locker.Unlock()
	return len(c.tickers)
}

// Advance moves the clock forward, firing the timers and the ticks due
// on the way in the chronological order.
func (c *ManualClock) Advance(d time.Duration) {
	c.locker.Lock()
	target := c.now.Add(d)
	c.locker.Unlock()

	for {
		c.locker.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			return c.timers[i].deadline.Before(c.timers[j].deadline)
		})
		if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
			c.now = target
			c.tick()
			c.locker.Unlock()
			return
		}
		t := c.timers[0]
		c.timers = c.timers[1:]
		c.now = t.deadline
		c.tick()
		c.locker.Unlock()

		t.fn()
	}
}

func (c *ManualClock) tick() {
	for _, t := range c.tickers {
		for !t.next.After(c.now) {
			select {
			case t.ch <- t.next:
			default:
			}
			t.next = t.next.Add(t.interval)
		}
	}
}

func (c *ManualClock) removeTimer(t *manualTimer) bool {
	c.locker.Lock()
	defer c.locker.Unlock()
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

func (c *ManualClock) removeTicker(t *manualTicker) {
	c.locker.Lock()
	defer c.locker.Unlock()
	for i, other := range c.tickers {
		if other == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	fn       func()
}

func (t *manualTimer) Stop() bool {
	return t.clock.removeTimer(t)
}

type manualTicker struct {
	clock    *ManualClock
	interval time.Duration
	next     time.Time
	ch       chan time.Time
}

func (t *manualTicker) C() <-chan time.Time {
	return t.ch
}

func (t *manualTicker) Stop() {
	t.clock.removeTicker(t)
}
