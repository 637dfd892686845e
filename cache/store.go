package cache

import "github.com/IvanBrykalov/asynccache/policy"

// store is the bounded key->entry map plus its recency tracker.
// It is not safe for concurrent use; the cache guards it with its lock.
//
// Invariant: the tracker's key set equals the map's key set.
type store[K comparable, V any] struct {
	m   map[K]*entry[K, V]
	tr  policy.Tracker[K]
	cap int
}

func newStore[K comparable, V any](capacity int, pol policy.Policy[K]) *store[K, V] {
	return &store[K, V]{
		m:   make(map[K]*entry[K, V], capacity),
		tr:  pol.New(),
		cap: capacity,
	}
}

// get returns k's entry without touching recency.
func (s *store[K, V]) get(k K) *entry[K, V] { return s.m[k] }

// touch promotes a resident key.
func (s *store[K, V]) touch(k K) {
	if _, ok := s.m[k]; ok {
		s.tr.Touch(k)
	}
}

// set replaces k's state and promotes k. A new entry is admitted with
// Touch, an existing one is refreshed with Update.
func (s *store[K, V]) set(k K, st *State[V]) *entry[K, V] {
	e, ok := s.m[k]
	if !ok {
		e = &entry[K, V]{key: k}
		s.m[k] = e
		s.tr.Touch(k)
	} else {
		s.tr.Update(k)
	}
	e.state = st
	return e
}

// update replaces e's state. If e is still resident it is refreshed with
// Update; entries already removed from the store are left untracked.
func (s *store[K, V]) update(e *entry[K, V], st *State[V]) {
	e.state = st
	if s.m[e.key] == e {
		s.tr.Update(e.key)
	}
}

// delete removes k from the map and the tracker and returns its entry.
// In-flight cancellation is the caller's job.
func (s *store[K, V]) delete(k K) *entry[K, V] {
	e, ok := s.m[k]
	if !ok {
		return nil
	}
	delete(s.m, k)
	s.tr.Remove(k)
	return e
}

// overflow pops victims until the bound holds, never choosing skip.
func (s *store[K, V]) overflow(skip K) []*entry[K, V] {
	var out []*entry[K, V]
	for len(s.m) > s.cap {
		k, ok := s.tr.Victim(skip)
		if !ok {
			break
		}
		e, ok := s.m[k]
		if !ok {
			continue
		}
		delete(s.m, k)
		out = append(out, e)
	}
	return out
}

// drain removes and returns every entry.
func (s *store[K, V]) drain() []*entry[K, V] {
	out := make([]*entry[K, V], 0, len(s.m))
	for _, k := range s.tr.Keys() {
		if e := s.delete(k); e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (s *store[K, V]) len() int { return len(s.m) }

func (s *store[K, V]) keys() []K { return s.tr.Keys() }
