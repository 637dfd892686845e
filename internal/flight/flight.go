// Package flight provides the in-flight handle shared by every caller that
// joins the same asynchronous load.
package flight

import (
	"context"
	"sync"
	"sync/atomic"
)

// Flight is a single in-flight operation whose result is published once and
// observed by any number of waiters.
//
// Concurrency notes:
//   - Publishing res happens-before close(done), so reads after <-Done()
//     observe the final value.
//   - Cancel marks the flight cancelled, cancels its context and publishes
//     the supplied result. A later Finish is ignored: whoever publishes first
//     wins. The work itself is not interrupted; it only sees ctx.Done().
//   - Cancelling the ctx passed to Wait unblocks only that waiter.
type Flight[S any] struct {
	ctx    context.Context
	cancel context.CancelFunc

	done      chan struct{} // closed when res is published
	once      sync.Once
	res       S
	cancelled atomic.Bool
}

// New creates a flight whose context derives from parent but does not
// inherit its cancellation, so a caller giving up does not abort work that
// other callers share.
func New[S any](parent context.Context) *Flight[S] {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Flight[S]{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Context is handed to the work function; it is cancelled by Cancel.
func (f *Flight[S]) Context() context.Context { return f.ctx }

// Finish publishes res and wakes waiters. It reports false when the flight
// was already finished or cancelled.
func (f *Flight[S]) Finish(res S) bool {
	published := false
	f.once.Do(func() {
		f.res = res
		close(f.done)
		published = true
	})
	if published {
		f.cancel() // release context resources
	}
	return published
}

// Cancel marks the flight cancelled and publishes res as its outcome.
// It reports false when the flight had already finished.
func (f *Flight[S]) Cancel(res S) bool {
	published := false
	f.once.Do(func() {
		f.cancelled.Store(true)
		f.res = res
		close(f.done)
		published = true
	})
	f.cancel()
	return published
}

// Cancelled reports whether Cancel won the race to publish.
func (f *Flight[S]) Cancelled() bool { return f.cancelled.Load() }

// Done is closed once the result is published.
func (f *Flight[S]) Done() <-chan struct{} { return f.done }

// Result returns the published result and whether it is available yet.
func (f *Flight[S]) Result() (S, bool) {
	select {
	case <-f.done:
		return f.res, true
	default:
		var zero S
		return zero, false
	}
}

// Wait blocks until the result is published or ctx is done.
func (f *Flight[S]) Wait(ctx context.Context) (S, error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		var zero S
		return zero, ctx.Err()
	}
}
