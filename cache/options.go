package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/IvanBrykalov/asynccache/policy"
)

// DefaultCapacity is the entry bound used when Options.Capacity is zero.
const DefaultCapacity = 500

// Resolver produces the value for key. args are the extra arguments passed
// to Load by the caller that started the flight.
//
// ctx is cancelled when the load is cancelled, the entry is evicted or
// removed, or the cache is closed. Honouring it is optional: a late result is
// discarded either way.
type Resolver[K comparable, V any] func(ctx context.Context, key K, args ...any) (V, error)

// Listener receives state changes for the keys it is subscribed to.
// Implementations must be comparable (typically pointer types): the same
// listener value subscribed twice to a key is registered once. Subscribe
// panics with ErrInvalidListener for a nil listener or a value that cannot
// be compared, such as a struct holding a func, map or slice.
type Listener[K comparable, V any] interface {
	OnState(key K, st *State[V])
}

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictCapacity: removed by the recency policy to restore the capacity bound.
	EvictCapacity EvictReason = iota
	// EvictRemoved: removed explicitly via Remove.
	EvictRemoved
	// EvictCleared: removed by Clear or Close.
	EvictCleared
)

// String returns a stable label for the reason.
func (r EvictReason) String() string {
	switch r {
	case EvictRemoved:
		return "removed"
	case EvictCleared:
		return "cleared"
	default:
		return "capacity"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
// Most hooks are called while the cache lock is held; keep them cheap.
type Metrics interface {
	// Hit/Miss count Read lookups.
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
	// LoadStarted counts resolver flights; LoadJoined counts Loads that
	// attached to an existing flight instead.
	LoadStarted()
	LoadJoined()
	// LoadSettled records a flight's terminal status and its duration.
	LoadSettled(status Status, d time.Duration)
	ListenerPanic()
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache behavior. Zero values are safe;
// sane defaults are applied in New():
//   - Capacity == 0        => DefaultCapacity (negative is rejected)
//   - nil Policy           => LRU
//   - nil Metrics          => NoopMetrics
//   - nil Logger           => zerolog.Nop()
//   - nil OnListenerError  => log at warn level
type Options[K comparable, V any] struct {
	// Capacity bounds the number of resident entries (lruSize).
	Capacity int

	// Policy selects eviction victims; nil => LRU.
	Policy policy.Policy[K]

	// MaxConcurrentLoads bounds concurrently running resolvers across all
	// keys. 0 means unlimited.
	MaxConcurrentLoads int

	// OnEvict is called under the cache lock for every removed entry;
	// keep it lightweight and do not call back into the cache.
	OnEvict func(k K, st *State[V], reason EvictReason)

	// OnListenerError receives panics raised by listeners, wrapped in
	// *ListenerError. It runs on the notifying goroutine.
	OnListenerError func(err error)

	// Observability
	Metrics Metrics
	Logger  *zerolog.Logger

	// Clock allows overriding time source (tests). Nil => time.Now().
	Clock Clock
}
