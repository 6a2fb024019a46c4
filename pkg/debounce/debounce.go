// Package debounce delays calls until input settles.
package debounce

import (
	"context"
	"sync"
	"time"
)

const DefaultDelay = 300 * time.Millisecond

// A Debouncer runs the latest scheduled call after a quiet delay.
//
// Scheduling a call cancels the pending timer and the context of the
// previous in-flight call. The result of a superseded call is discarded.
type Debouncer[T any] struct {
	mu     sync.Mutex
	delay  time.Duration
	timer  *time.Timer
	cancel context.CancelFunc
	seq    uint64
}

// New returns a Debouncer. Non-positive delay means [DefaultDelay].
func New[T any](delay time.Duration) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{delay: delay}
}

// Schedule calls fn after the delay and hands its result to apply, unless
// another call is scheduled or ctx is done first.
//
// apply runs under the debouncer lock: a concurrent Schedule or Cancel
// waits for it, and apply must not call back into d.
func (d *Debouncer[T]) Schedule(
	ctx context.Context,
	fn func(context.Context) (T, error),
	apply func(T, error),
) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.seq++
	seq := d.seq
	callCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.timer = time.AfterFunc(d.delay, func() {
		v, err := fn(callCtx)

		d.mu.Lock()
		defer d.mu.Unlock()
		defer cancel()
		if callCtx.Err() != nil || d.seq != seq {
			return
		}
		apply(v, err)
	})
}

// Cancel drops the pending call and cancels the in-flight one.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.seq++
}

func (d *Debouncer[T]) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
