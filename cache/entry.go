package cache

import "github.com/IvanBrykalov/asynccache/internal/flight"

// entry is the per-key record owned by the store.
// Listeners live on the bus so they outlive eviction.
type entry[K comparable, V any] struct {
	key   K
	state *State[V]

	// fl is the active resolution while state is loading, nil otherwise.
	// A flight is live only while it is its entry's fl: settlement of any
	// other flight (cancelled, evicted, superseded) is discarded.
	fl *flight.Flight[*State[V]]

	// started is the UnixNano at which fl began.
	started int64
}

func (e *entry[K, V]) loading() bool { return e.fl != nil }
