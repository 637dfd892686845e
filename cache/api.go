package cache

import "context"

// Cache is a key-addressed asynchronous cache: values are produced by a
// Resolver, concurrent loads of one key share a single resolution, the
// number of entries is bounded by a recency policy, and listeners are told
// about every state transition.
// All methods are safe for concurrent use by multiple goroutines.
type Cache[K comparable, V any] interface {
	// Load resolves k, or joins the resolution already in flight for k,
	// and blocks until it settles. Resolver failures are reported through
	// the returned state, never as an error; err is only ErrClosed or the
	// caller's ctx.Err() (in which case the shared resolution continues).
	// args are passed to the resolver when this call starts the flight.
	Load(ctx context.Context, k K, args ...any) (*State[V], error)

	// LoadAsync starts or joins the load of k and returns a channel that
	// receives the settled state once. After Close the channel receives nil.
	LoadAsync(k K, args ...any) <-chan *State[V]

	// Read returns the current state of k, or nil if k is not resident.
	// A hit promotes k in the recency order. It never triggers a load.
	Read(k K) *State[V]

	// Peek is Read without the recency promotion.
	Peek(k K) *State[V]

	// Cancel moves a loading k to StatusCancelled and discards the eventual
	// resolver result. It is a no-op for any other state or absent keys.
	Cancel(k K)

	// Subscribe registers l for state changes of k. Subscribing the same
	// listener twice is a no-op. Subscriptions survive eviction of k.
	// It panics with ErrInvalidListener if l is nil or not comparable.
	Subscribe(k K, l Listener[K, V])

	// Unsubscribe removes l from k's listeners.
	Unsubscribe(k K, l Listener[K, V])

	// SubscribeFunc registers fn for k and returns the function that
	// removes it. Each call is a separate registration.
	SubscribeFunc(k K, fn func(K, *State[V])) (unsubscribe func())

	// Remove deletes k, cancelling its in-flight load first.
	// Returns true if k was resident.
	Remove(k K) bool

	// Clear removes every entry, cancelling in-flight loads.
	Clear()

	// Len returns the number of resident entries.
	Len() int

	// Keys returns resident keys in recency order (most recent first,
	// as defined by the policy).
	Keys() []K

	// Stats returns a snapshot of the cache counters.
	Stats() Stats

	// Close cancels all in-flight loads and rejects further loads.
	Close() error
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries     int
	Hits        uint64
	Misses      uint64
	Loads       uint64 // resolver flights started
	Joins       uint64 // loads coalesced onto an existing flight
	Successes   uint64
	Failures    uint64
	Cancels     uint64
	Evictions   uint64
	ListenerErr uint64
}
