// Package policy defines the recency-tracking contract used by the cache to
// pick eviction victims. Implementations live in sub-packages (lru, twoq).
package policy

// Tracker records access order for the keys resident in a cache and selects
// eviction victims. It tracks keys only; the cache owns the entries.
//
// Concurrency: trackers are not safe for concurrent use. The cache calls
// every method while holding its store lock.
//
// Invariant: the tracker's key set equals the cache's resident key set.
// The cache calls Touch on every insert and read, Update on every state
// change of a resident key, and Remove on every deletion that was not
// produced by Victim.
type Tracker[K comparable] interface {
	// Touch records an access: k becomes most recently used, creating its
	// slot if new.
	Touch(k K)
	// Update records a write to a resident key that is not itself an access
	// (e.g. a load settling). Unknown keys are ignored.
	Update(k K)
	// Victim removes and returns the key that should be evicted next.
	// It never returns skip (the key whose insertion triggered eviction).
	// ok is false when no eligible key exists.
	Victim(skip K) (k K, ok bool)
	// Remove deletes k's slot. Unknown keys are ignored.
	Remove(k K)
	// Len returns the number of tracked keys.
	Len() int
	// Keys returns the tracked keys from most to least recently used.
	Keys() []K
}

// Policy is a factory that creates a fresh Tracker for a cache instance.
type Policy[K comparable] interface {
	New() Tracker[K]
}

// Func adapts a constructor function to the Policy interface.
type Func[K comparable] func() Tracker[K]

// New implements Policy.
func (f Func[K]) New() Tracker[K] { return f() }
