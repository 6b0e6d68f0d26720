package clock

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Sleeper blocks for a duration or until the context ends.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Countdown is a millisecond counter shared between a tick source and a waiter.
type Countdown struct {
	v atomic.Uint32
}

func (c *Countdown) Set(ms uint32) {
	c.v.Store(ms)
}

func (c *Countdown) Load() uint32 {
	return c.v.Load()
}

// Tick decrements the counter unless it already reached zero.
func (c *Countdown) Tick() {
	for {
		cur := c.v.Load()
		if cur == 0 {
			return
		}
		if c.v.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// DefaultTickPeriod is the period of one countdown unit.
const DefaultTickPeriod = time.Millisecond

// Ticker decrements a countdown at a fixed period.
type Ticker struct {
	cell   *Countdown
	period time.Duration
}

func NewTicker(cell *Countdown, period time.Duration) *Ticker {
	if period <= 0 {
		period = DefaultTickPeriod
	}
	return &Ticker{cell: cell, period: period}
}

// Run ticks until ctx ends.
func (t *Ticker) Run(ctx context.Context) {
	tk := time.NewTicker(t.period)
	defer tk.Stop()
	for {
		select {
		case <-tk.C:
			t.cell.Tick()
		case <-ctx.Done():
			return
		}
	}
}

// TickDelay waits on a countdown driven by a Ticker. Concurrent callers are
// served one at a time since they share the cell.
type TickDelay struct {
	mx     sync.Mutex
	cell   *Countdown
	period time.Duration
	poll   time.Duration
}

// StartTickDelay starts a ticker on a fresh countdown that runs until ctx ends.
func StartTickDelay(ctx context.Context, period time.Duration) *TickDelay {
	cell := &Countdown{}
	tk := NewTicker(cell, period)
	go tk.Run(ctx)
	return &TickDelay{cell: cell, period: tk.period, poll: tk.period / 2}
}

// ticks converts dur to whole periods, rounding up and saturating at the cell width.
func (d *TickDelay) ticks(dur time.Duration) uint32 {
	if dur <= 0 {
		return 0
	}
	n := (dur + d.period - 1) / d.period
	if n <= 0 || n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

func (d *TickDelay) Sleep(ctx context.Context, dur time.Duration) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	ticks := d.ticks(dur)
	if ticks == 0 {
		return ctx.Err()
	}
	d.cell.Set(ticks)
	poll := time.NewTicker(max(d.poll, time.Microsecond))
	defer poll.Stop()
	for d.cell.Load() != 0 {
		select {
		case <-poll.C:
		case <-ctx.Done():
			d.cell.Set(0)
			return ctx.Err()
		}
	}
	return nil
}

// Timer sleeps on the runtime timer.
type Timer struct{}

func (Timer) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
