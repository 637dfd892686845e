package cache

import (
	"fmt"
	"reflect"
	"sync"
)

// event is one state transition waiting to be delivered.
type event[K comparable, V any] struct {
	key K
	st  *State[V]
}

// bus is the per-key listener registry plus an ordered delivery queue.
//
// Transitions are enqueued while the cache lock is held, so queue order is
// mutation order. Delivery happens outside the cache lock by whichever
// goroutine finds the bus idle; only one goroutine drains at a time, so
// listeners see each key's transitions strictly in order and may call back
// into the cache. Listeners are looked up at delivery time.
type bus[K comparable, V any] struct {
	mu       sync.Mutex
	subs     map[K][]Listener[K, V]
	queue    []event[K, V]
	draining bool

	// onPanic reports a recovered listener panic.
	onPanic func(*ListenerError)
}

func newBus[K comparable, V any](onPanic func(*ListenerError)) *bus[K, V] {
	return &bus[K, V]{
		subs:    make(map[K][]Listener[K, V]),
		onPanic: onPanic,
	}
}

// subscribe appends l to k's listeners unless it is already registered.
// It panics with ErrInvalidListener if l is nil or not comparable.
func (b *bus[K, V]) subscribe(k K, l Listener[K, V]) {
	if !comparableListener(l) {
		panic(fmt.Errorf("%w: %T", ErrInvalidListener, l))
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, x := range b.subs[k] {
		if x == l {
			return
		}
	}
	b.subs[k] = append(b.subs[k], l)
}

// unsubscribe removes l from k's listeners, preserving registration order.
func (b *bus[K, V]) unsubscribe(k K, l Listener[K, V]) {
	if !comparableListener(l) {
		return // never registered
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	ls := b.subs[k]
	for i, x := range ls {
		if x != l {
			continue
		}
		// copy so an in-progress delivery keeps iterating its own snapshot
		next := make([]Listener[K, V], 0, len(ls)-1)
		next = append(next, ls[:i]...)
		next = append(next, ls[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, k)
		} else {
			b.subs[k] = next
		}
		return
	}
}

// listeners returns the number of listeners registered for k.
func (b *bus[K, V]) listeners(k K) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[k])
}

// enqueue records a transition. Called with the cache lock held.
func (b *bus[K, V]) enqueue(k K, st *State[V]) {
	b.mu.Lock()
	b.queue = append(b.queue, event[K, V]{key: k, st: st})
	b.mu.Unlock()
}

// drain delivers queued events unless another goroutine is already doing so.
// Must be called without the cache lock.
func (b *bus[K, V]) drain() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		ev := b.queue[0]
		b.queue[0] = event[K, V]{}
		b.queue = b.queue[1:]
		ls := b.subs[ev.key]
		b.mu.Unlock()

		for _, l := range ls {
			if !b.isSubscribed(ev.key, l) {
				continue // removed by an earlier listener in this round
			}
			b.deliver(l, ev)
		}

		b.mu.Lock()
	}
	b.queue = nil
	b.draining = false
	b.mu.Unlock()
}

func (b *bus[K, V]) isSubscribed(k K, l Listener[K, V]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, x := range b.subs[k] {
		if x == l {
			return true
		}
	}
	return false
}

// deliver invokes one listener, converting a panic into a ListenerError.
func (b *bus[K, V]) deliver(l Listener[K, V], ev event[K, V]) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(&ListenerError{Key: ev.key, Panic: r})
		}
	}()
	l.OnState(ev.key, ev.st)
}

// comparableListener reports whether l can be used with ==. It checks the
// dynamic value, so a struct whose interface field holds a slice fails too.
// Registered listeners are all comparable, so the bus never panics on ==.
func comparableListener[K comparable, V any](l Listener[K, V]) bool {
	return reflect.ValueOf(l).Comparable()
}

// funcListener adapts a function to Listener. Each adapter is a distinct
// pointer, so every SubscribeFunc call is its own registration.
type funcListener[K comparable, V any] struct {
	fn func(K, *State[V])
}

func (f *funcListener[K, V]) OnState(k K, st *State[V]) { f.fn(k, st) }
