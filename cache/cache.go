package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/IvanBrykalov/asynccache/internal/flight"
	"github.com/IvanBrykalov/asynccache/policy/lru"
)

// cache is the asynchronous cache engine.
//
// One mutex guards the store, the recency tracker and the enqueueing of
// notifications, which keeps per-key transitions totally ordered.
// Resolvers run on their own goroutines outside the lock.
type cache[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu     sync.Mutex
	st     *store[K, V]
	closed bool

	bus     *bus[K, V]
	resolve Resolver[K, V]
	sem     *semaphore.Weighted // nil = unlimited
	opt     Options[K, V]
	log     zerolog.Logger

	// wg counts resolver goroutines still running, including ones whose
	// result will be discarded. Close does not wait on it; tests do.
	wg sync.WaitGroup

	ctr counters
}

type counters struct {
	hits, misses, loads, joins   atomic.Uint64
	successes, failures, cancels atomic.Uint64
	evictions, listenerErr       atomic.Uint64
}

// outcome is a flight result published after the lock is released and
// queued notifications are delivered.
type outcome[V any] struct {
	f      *flight.Flight[*State[V]]
	st     *State[V]
	cancel bool
}

// New constructs a cache around resolve.
// Defaults:
//   - Capacity == 0 -> DefaultCapacity
//   - nil Policy    -> LRU
//   - nil Metrics   -> NoopMetrics
//   - nil Logger    -> zerolog.Nop()
//
// A nil resolver or negative Capacity/MaxConcurrentLoads yields a *ConfigError.
func New[K comparable, V any](resolve Resolver[K, V], opt Options[K, V]) (Cache[K, V], error) {
	if resolve == nil {
		return nil, &ConfigError{Field: "resolver", Err: ErrNilResolver}
	}
	if opt.Capacity < 0 {
		return nil, &ConfigError{Field: "Capacity", Err: ErrInvalidCapacity}
	}
	if opt.MaxConcurrentLoads < 0 {
		return nil, &ConfigError{Field: "MaxConcurrentLoads", Err: ErrInvalidConcurrency}
	}
	if opt.Capacity == 0 {
		opt.Capacity = DefaultCapacity
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K]()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	base := zerolog.Nop()
	if opt.Logger != nil {
		base = *opt.Logger
	}

	c := &cache[K, V]{
		st:      newStore[K, V](opt.Capacity, opt.Policy),
		resolve: resolve,
		opt:     opt,
		log:     base.With().Str("component", "asynccache").Logger(),
	}
	if opt.MaxConcurrentLoads > 0 {
		c.sem = semaphore.NewWeighted(int64(opt.MaxConcurrentLoads))
	}
	c.bus = newBus[K, V](c.listenerPanicked)

	c.log.Debug().
		Int("capacity", opt.Capacity).
		Int("max_concurrent_loads", opt.MaxConcurrentLoads).
		Msg("cache created")
	return c, nil
}

// MustNew is like New but panics on invalid configuration.
func MustNew[K comparable, V any](resolve Resolver[K, V], opt Options[K, V]) Cache[K, V] {
	c, err := New(resolve, opt)
	if err != nil {
		panic(err)
	}
	return c
}

// ---- Cache[K,V] implementation ----

// Load starts or joins the flight for k and waits for it to settle.
func (c *cache[K, V]) Load(ctx context.Context, k K, args ...any) (*State[V], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := c.start(ctx, k, args)
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

// LoadAsync starts or joins the flight for k and delivers the settled state
// on the returned channel.
func (c *cache[K, V]) LoadAsync(k K, args ...any) <-chan *State[V] {
	out := make(chan *State[V], 1)
	f, err := c.start(context.Background(), k, args)
	if err != nil {
		out <- nil
		return out
	}
	go func() {
		<-f.Done()
		st, _ := f.Result()
		out <- st
	}()
	return out
}

// Read returns k's current state and promotes it; nil if not resident.
func (c *cache[K, V]) Read(k K) *State[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.st.get(k)
	if e == nil {
		c.ctr.misses.Add(1)
		c.opt.Metrics.Miss()
		return nil
	}
	c.st.touch(k)
	c.ctr.hits.Add(1)
	c.opt.Metrics.Hit()
	return e.state
}

// Peek returns k's current state without promoting it.
func (c *cache[K, V]) Peek(k K) *State[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.st.get(k); e != nil {
		return e.state
	}
	return nil
}

// Cancel moves a loading entry to StatusCancelled.
func (c *cache[K, V]) Cancel(k K) {
	c.mu.Lock()
	e := c.st.get(k)
	if e == nil || !e.loading() {
		c.mu.Unlock()
		return
	}
	out := c.cancelLocked(e)
	c.mu.Unlock()

	c.log.Debug().Interface("key", k).Msg("load cancelled")
	c.publish(out)
}

// Subscribe registers l for k.
func (c *cache[K, V]) Subscribe(k K, l Listener[K, V]) { c.bus.subscribe(k, l) }

// Unsubscribe removes l from k.
func (c *cache[K, V]) Unsubscribe(k K, l Listener[K, V]) { c.bus.unsubscribe(k, l) }

// SubscribeFunc registers fn for k and returns its unsubscribe function.
func (c *cache[K, V]) SubscribeFunc(k K, fn func(K, *State[V])) func() {
	l := &funcListener[K, V]{fn: fn}
	c.bus.subscribe(k, l)
	return sync.OnceFunc(func() { c.bus.unsubscribe(k, l) })
}

// Remove deletes k, cancelling its in-flight load first.
func (c *cache[K, V]) Remove(k K) bool {
	c.mu.Lock()
	e := c.st.delete(k)
	if e == nil {
		c.mu.Unlock()
		return false
	}
	outs := c.dropLocked(e, EvictRemoved, nil)
	c.opt.Metrics.Size(c.st.len())
	c.mu.Unlock()

	c.publish(outs...)
	return true
}

// Clear removes every entry.
func (c *cache[K, V]) Clear() {
	c.mu.Lock()
	var outs []outcome[V]
	for _, e := range c.st.drain() {
		outs = c.dropLocked(e, EvictCleared, outs)
	}
	c.opt.Metrics.Size(0)
	c.mu.Unlock()

	c.publish(outs...)
}

// Len returns the number of resident entries.
func (c *cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.len()
}

// Keys returns resident keys in policy order.
func (c *cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.keys()
}

// Stats returns a snapshot of the counters.
func (c *cache[K, V]) Stats() Stats {
	return Stats{
		Entries:     c.Len(),
		Hits:        c.ctr.hits.Load(),
		Misses:      c.ctr.misses.Load(),
		Loads:       c.ctr.loads.Load(),
		Joins:       c.ctr.joins.Load(),
		Successes:   c.ctr.successes.Load(),
		Failures:    c.ctr.failures.Load(),
		Cancels:     c.ctr.cancels.Load(),
		Evictions:   c.ctr.evictions.Load(),
		ListenerErr: c.ctr.listenerErr.Load(),
	}
}

// Close cancels every in-flight load and rejects further loads.
// Settled entries stay readable. Close does not wait for resolvers that
// ignore their context.
func (c *cache[K, V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var outs []outcome[V]
	for _, k := range c.st.keys() {
		if e := c.st.get(k); e != nil && e.loading() {
			outs = append(outs, c.cancelLocked(e))
		}
	}
	c.mu.Unlock()

	c.log.Debug().Int("cancelled", len(outs)).Msg("cache closed")
	c.publish(outs...)
	return nil
}

// ---- load path ----

// start joins k's active flight or begins a new one.
func (c *cache[K, V]) start(ctx context.Context, k K, args []any) (*flight.Flight[*State[V]], error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}

	e := c.st.get(k)
	if e != nil && e.loading() {
		// de-duplicate: share the resolution already in flight
		f := e.fl
		c.st.touch(k)
		c.ctr.joins.Add(1)
		c.opt.Metrics.LoadJoined()
		c.mu.Unlock()
		return f, nil
	}

	var prev *State[V]
	if e != nil {
		prev = e.state
	}
	now := c.now()
	st := loadingFrom(prev, now)
	e = c.st.set(k, st)
	if prev != nil {
		c.st.touch(k) // a reload is an access
	}
	f := flight.New[*State[V]](ctx)
	e.fl, e.started = f, now
	c.ctr.loads.Add(1)
	c.opt.Metrics.LoadStarted()
	c.bus.enqueue(k, st)

	outs := c.enforceLocked(k)
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Debug().Interface("key", k).Msg("load started")
	c.publish(outs...)

	go c.run(k, f, args)
	return f, nil
}

// run invokes the resolver for f and applies its result.
func (c *cache[K, V]) run(k K, f *flight.Flight[*State[V]], args []any) {
	defer c.wg.Done()

	ctx := f.Context()
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return // cancelled while waiting for a slot
		}
	}
	if f.Cancelled() || ctx.Err() != nil {
		c.release()
		return
	}

	v, err := c.invoke(ctx, k, args)
	// The slot covers the resolver only: settle delivers notifications on
	// this goroutine, and a listener may start loads of its own.
	c.release()
	c.settle(k, f, v, err)
}

// release returns a MaxConcurrentLoads slot.
func (c *cache[K, V]) release() {
	if c.sem != nil {
		c.sem.Release(1)
	}
}

// invoke calls the resolver, turning a panic into a ResolverPanicError.
func (c *cache[K, V]) invoke(ctx context.Context, k K, args []any) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ResolverPanicError{Panic: r}
			c.log.Error().Interface("key", k).Interface("panic", r).Msg("resolver panicked")
		}
	}()
	return c.resolve(ctx, k, args...)
}

// settle applies a resolver result if f is still k's live flight.
func (c *cache[K, V]) settle(k K, f *flight.Flight[*State[V]], v V, err error) {
	c.mu.Lock()
	e := c.st.get(k)
	if e == nil || e.fl != f || f.Cancelled() {
		c.mu.Unlock()
		c.log.Debug().Interface("key", k).Msg("discarding result of cancelled load")
		return
	}

	now := c.now()
	var st *State[V]
	if err != nil {
		st = failed(e.state, err, now)
		c.ctr.failures.Add(1)
	} else {
		st = succeeded(v, now)
		c.ctr.successes.Add(1)
	}
	c.opt.Metrics.LoadSettled(st.status, time.Duration(now-e.started))
	e.fl = nil
	c.st.set(k, st)
	c.bus.enqueue(k, st)
	outs := c.enforceLocked(k)
	c.mu.Unlock()

	ev := c.log.Debug()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Interface("key", k).Str("status", st.status.String()).Msg("load settled")

	c.publish(append(outs, outcome[V]{f: f, st: st})...)
}

// ---- helpers (mu held) ----

// cancelLocked moves a loading entry to cancelled and detaches its flight.
// A resident entry is refreshed in the recency order.
func (c *cache[K, V]) cancelLocked(e *entry[K, V]) outcome[V] {
	now := c.now()
	st := cancelledFrom(e.state, now)
	f := e.fl
	c.opt.Metrics.LoadSettled(StatusCancelled, time.Duration(now-e.started))
	e.fl = nil
	c.st.update(e, st)
	c.ctr.cancels.Add(1)
	c.bus.enqueue(e.key, st)
	return outcome[V]{f: f, st: st, cancel: true}
}

// dropLocked finalizes an entry already removed from the store: a loading
// entry is cancelled (and its listeners told so) before OnEvict runs.
func (c *cache[K, V]) dropLocked(e *entry[K, V], reason EvictReason, outs []outcome[V]) []outcome[V] {
	if e.loading() {
		outs = append(outs, c.cancelLocked(e))
	}
	c.ctr.evictions.Add(1)
	c.opt.Metrics.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		cb(e.key, e.state, reason)
	}
	c.log.Debug().Interface("key", e.key).Str("reason", reason.String()).Msg("entry evicted")
	return outs
}

// enforceLocked evicts until the capacity bound holds, sparing skip.
func (c *cache[K, V]) enforceLocked(skip K) []outcome[V] {
	var outs []outcome[V]
	for _, e := range c.st.overflow(skip) {
		outs = c.dropLocked(e, EvictCapacity, outs)
	}
	c.opt.Metrics.Size(c.st.len())
	return outs
}

// ---- helpers (mu not held) ----

// publish delivers queued notifications, then resolves waiters, so a
// listener sees a transition no later than the Load that produced it returns
// (when this goroutine is the one delivering).
func (c *cache[K, V]) publish(outs ...outcome[V]) {
	c.bus.drain()
	for _, o := range outs {
		if o.cancel {
			o.f.Cancel(o.st)
		} else {
			o.f.Finish(o.st)
		}
	}
}

func (c *cache[K, V]) listenerPanicked(err *ListenerError) {
	c.ctr.listenerErr.Add(1)
	c.opt.Metrics.ListenerPanic()
	if cb := c.opt.OnListenerError; cb != nil {
		func() {
			defer func() { _ = recover() }()
			cb(err)
		}()
		return
	}
	c.log.Warn().Interface("key", err.Key).Interface("panic", err.Panic).Msg("listener panicked")
}

func (c *cache[K, V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}
