package clock

import (
	"context"
	"sync"
	"time"
)

// Fake records requested sleeps and returns immediately.
// OnSleep, when set, runs on every call before the sleep is recorded as done.
type Fake struct {
	mx      sync.Mutex
	slept   []time.Duration
	OnSleep func(d time.Duration)
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.OnSleep != nil {
		f.OnSleep(d)
	}
	f.mx.Lock()
	f.slept = append(f.slept, d)
	f.mx.Unlock()
	return ctx.Err()
}

func (f *Fake) Slept() []time.Duration {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([]time.Duration(nil), f.slept...)
}

// Total returns the sum of all recorded sleeps.
func (f *Fake) Total() time.Duration {
	f.mx.Lock()
	defer f.mx.Unlock()
	var total time.Duration
	for _, d := range f.slept {
		total += d
	}
	return total
}
