// Package cache provides a generic, in-memory, key-addressed asynchronous
// cache: values are produced by a user-supplied Resolver, concurrent loads of
// the same key share one resolution, the number of entries is bounded by a
// recency policy (LRU by default), and listeners are notified of every state
// transition.
//
// Design
//
//   - State: each resident key has exactly one immutable *State
//     (loading, success, error, cancelled). Every transition allocates a new
//     one, so pointer identity tells consumers whether anything changed.
//     A nil state (StatusIdle via StatusOf) means "never loaded or evicted".
//
//   - Loading: Load starts a flight for the key or joins the one already in
//     flight; the resolver runs once per flight on its own goroutine.
//     Resolver errors and panics end up in the state (StatusError); Load only
//     returns an error for ErrClosed or the caller's own ctx.
//
//   - Cancellation: Cancel (and eviction, Remove, Clear, Close) detaches the
//     flight from its entry and cancels the context passed to the resolver.
//     The resolver is not interrupted; its late result is simply discarded.
//     Waiters receive the cancelled state as of cancellation time.
//
//   - Capacity: Options.Capacity bounds resident entries (DefaultCapacity
//     when zero). After each insertion the policy picks victims, never the
//     key just inserted. Evicting a loading key cancels it and notifies its
//     listeners with StatusCancelled before the entry disappears.
//
//   - Notifications: listeners are registered per key and outlive eviction.
//     Transitions are delivered in mutation order, outside the cache lock,
//     so listeners may call back into the cache. A panicking listener is
//     recovered and reported through Options.OnListenerError (or the logger)
//     without affecting other listeners.
//
//   - Metrics: Options.Metrics receives hit/miss/evict/size and load
//     lifecycle signals. NoopMetrics is the default; see metrics/prom.
//
// Basic usage
//
//	c := cache.MustNew(func(ctx context.Context, k string, _ ...any) (string, error) {
//	    return strings.ToUpper(k), nil
//	}, cache.Options[string, string]{Capacity: 2})
//	st, _ := c.Load(context.Background(), "a")
//	v, _ := st.Value() // "A"
//
// Watching a key
//
//	stop := c.SubscribeFunc("a", func(k string, st *cache.State[string]) {
//	    log.Printf("%s -> %s", k, st.Status())
//	})
//	defer stop()
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Read, Cancel and the
// bookkeeping part of Load are O(1) expected time under a single lock.
package cache
