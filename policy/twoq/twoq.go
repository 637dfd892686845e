// Package twoq implements a 2Q recency tracker.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/asynccache/policy"
)

// twoQ implements the 2Q eviction policy over keys.
//
// Resident queues:
//   - A1in (probation): first-time keys, FIFO; evicted first while over capIn
//   - Am   (main)      : keys touched again while resident (or readmitted ghosts), LRU
//
// Ghost A1out: keys only, tracks recently evicted A1in keys to give them
// a second chance (bypass A1in on re-admission).
//
// A scan of one-off keys therefore churns through A1in without displacing
// the hot set kept in Am.
type twoQ[K comparable] struct {
	capIn    int
	capGhost int

	// A1in: newest at Front() -> oldest at Back()
	in    *list.List
	inIdx map[K]*list.Element

	// Am: MRU at Front() -> LRU at Back()
	am    *list.List
	amIdx map[K]*list.Element

	// A1out (ghosts): MRU at Front() -> LRU at Back()
	ghost    *list.List
	ghostIdx map[K]*list.Element
}

type twoQPolicy[K comparable] struct {
	capIn    int
	capGhost int
}

// New constructs a 2Q policy factory.
// Common choices: capIn ≈ 25% of cache capacity; capGhost ≈ 50–100% of it.
func New[K comparable](capIn, capGhost int) policy.Policy[K] {
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy[K]{capIn: capIn, capGhost: capGhost}
}

// New implements policy.Policy.
func (p twoQPolicy[K]) New() policy.Tracker[K] {
	return &twoQ[K]{
		capIn:    p.capIn,
		capGhost: p.capGhost,
		in:       list.New(),
		inIdx:    make(map[K]*list.Element),
		am:       list.New(),
		amIdx:    make(map[K]*list.Element),
		ghost:    list.New(),
		ghostIdx: make(map[K]*list.Element),
	}
}

// Touch admission rules:
//   - resident in Am: move to MRU
//   - resident in A1in: promote to Am
//   - known ghost: drop the ghost and admit straight into Am
//   - otherwise: admit into A1in
func (q *twoQ[K]) Touch(k K) {
	if el, ok := q.amIdx[k]; ok {
		q.am.MoveToFront(el)
		return
	}
	if el, ok := q.inIdx[k]; ok {
		q.in.Remove(el)
		delete(q.inIdx, k)
		q.amIdx[k] = q.am.PushFront(k)
		return
	}
	if el, ok := q.ghostIdx[k]; ok {
		q.ghost.Remove(el)
		delete(q.ghostIdx, k)
		q.amIdx[k] = q.am.PushFront(k)
		return
	}
	q.inIdx[k] = q.in.PushFront(k)
}

// Update refreshes k's position within its current queue without promoting
// it: a load settling is not a second access.
func (q *twoQ[K]) Update(k K) {
	if el, ok := q.amIdx[k]; ok {
		q.am.MoveToFront(el)
		return
	}
	if el, ok := q.inIdx[k]; ok {
		q.in.MoveToFront(el)
	}
}

// Victim prefers the oldest A1in key while A1in is over capacity,
// otherwise the LRU key of Am, falling back to A1in when Am is empty.
// Keys evicted from A1in are remembered as ghosts.
func (q *twoQ[K]) Victim(skip K) (K, bool) {
	if q.in.Len() > q.capIn {
		if k, ok := q.popBack(q.in, q.inIdx, skip); ok {
			q.remember(k)
			return k, true
		}
	}
	if k, ok := q.popBack(q.am, q.amIdx, skip); ok {
		return k, true
	}
	if k, ok := q.popBack(q.in, q.inIdx, skip); ok {
		q.remember(k)
		return k, true
	}
	var zero K
	return zero, false
}

// Remove drops k from whichever resident queue holds it.
// Explicit removals do not create ghosts.
func (q *twoQ[K]) Remove(k K) {
	if el, ok := q.inIdx[k]; ok {
		q.in.Remove(el)
		delete(q.inIdx, k)
		return
	}
	if el, ok := q.amIdx[k]; ok {
		q.am.Remove(el)
		delete(q.amIdx, k)
	}
}

// Len returns the number of resident keys (ghosts excluded).
func (q *twoQ[K]) Len() int { return q.in.Len() + q.am.Len() }

// Keys returns Am keys (MRU first) followed by A1in keys (newest first).
func (q *twoQ[K]) Keys() []K {
	out := make([]K, 0, q.Len())
	for el := q.am.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(K))
	}
	for el := q.in.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(K))
	}
	return out
}

func (q *twoQ[K]) popBack(l *list.List, idx map[K]*list.Element, skip K) (K, bool) {
	for el := l.Back(); el != nil; el = el.Prev() {
		k := el.Value.(K)
		if k == skip {
			continue
		}
		l.Remove(el)
		delete(idx, k)
		return k, true
	}
	var zero K
	return zero, false
}

// remember inserts k as the MRU ghost and trims ghosts to capGhost.
func (q *twoQ[K]) remember(k K) {
	if old, ok := q.ghostIdx[k]; ok {
		q.ghost.Remove(old)
	}
	q.ghostIdx[k] = q.ghost.PushFront(k)
	for q.ghost.Len() > q.capGhost {
		tail := q.ghost.Back()
		if tail == nil {
			break
		}
		delete(q.ghostIdx, tail.Value.(K))
		q.ghost.Remove(tail)
	}
}
