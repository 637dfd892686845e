package cache

import "time"

// Status is the lifecycle stage of a cache entry.
type Status uint8

const (
	// StatusIdle is the pseudo-state of a key that has never been loaded
	// (or was evicted). The cache never stores it; see StatusOf.
	StatusIdle Status = iota
	// StatusLoading: a resolution is in flight.
	StatusLoading
	// StatusSuccess: the resolver returned a value.
	StatusSuccess
	// StatusError: the resolver returned an error.
	StatusError
	// StatusCancelled: the load was cancelled before it settled.
	StatusCancelled
)

// String returns the lowercase status name (used as a metrics label).
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Terminal reports whether no further transition happens without a new load.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// State is an immutable snapshot of one key's lifecycle.
//
// Every transition allocates a new *State, so two reads returning the same
// pointer saw no change in between. Consumers may rely on pointer equality
// to detect "no change".
type State[V any] struct {
	status   Status
	value    V
	hasValue bool
	err      error
	at       int64 // UnixNano of the transition
}

// Status returns the lifecycle stage.
func (s *State[V]) Status() Status { return s.status }

// Value returns the last known value and whether one is present.
// Loading, error and cancelled states carry the previous value, if any.
func (s *State[V]) Value() (V, bool) { return s.value, s.hasValue }

// Err returns the resolver error; non-nil only for StatusError.
func (s *State[V]) Err() error { return s.err }

// UpdatedAt returns when this state was produced.
func (s *State[V]) UpdatedAt() time.Time { return time.Unix(0, s.at) }

// StatusOf returns the status of s, or StatusIdle when s is nil.
func StatusOf[V any](s *State[V]) Status {
	if s == nil {
		return StatusIdle
	}
	return s.status
}

// ---- transitions (each returns a fresh value) ----

// loading keeps the previous value (if any) and clears the error.
func loadingFrom[V any](prev *State[V], now int64) *State[V] {
	st := &State[V]{status: StatusLoading, at: now}
	if prev != nil {
		st.value, st.hasValue = prev.value, prev.hasValue
	}
	return st
}

func succeeded[V any](v V, now int64) *State[V] {
	return &State[V]{status: StatusSuccess, value: v, hasValue: true, at: now}
}

// failed keeps the previous value (if any) alongside err.
func failed[V any](prev *State[V], err error, now int64) *State[V] {
	st := &State[V]{status: StatusError, err: err, at: now}
	if prev != nil {
		st.value, st.hasValue = prev.value, prev.hasValue
	}
	return st
}

// cancelledFrom keeps the last known value and clears the error.
func cancelledFrom[V any](prev *State[V], now int64) *State[V] {
	st := &State[V]{status: StatusCancelled, at: now}
	if prev != nil {
		st.value, st.hasValue = prev.value, prev.hasValue
	}
	return st
}
