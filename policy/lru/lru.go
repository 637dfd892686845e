// Package lru implements the LRU recency tracker.
package lru

import "github.com/IvanBrykalov/asynccache/policy"

// node is an intrusive doubly linked list element (head=MRU, tail=LRU).
type node[K comparable] struct {
	key  K
	prev *node[K]
	next *node[K]
}

// lru is a classic "move-to-front" Least-Recently-Used tracker:
// a map for O(1) lookups plus an intrusive MRU↔LRU list.
type lru[K comparable] struct {
	m    map[K]*node[K]
	head *node[K] // MRU
	tail *node[K] // LRU
}

type lruPolicy[K comparable] struct{}

// New returns a Policy factory that constructs LRU trackers.
func New[K comparable]() policy.Policy[K] { return lruPolicy[K]{} }

// New implements policy.Policy.
func (lruPolicy[K]) New() policy.Tracker[K] { return NewTracker[K]() }

// NewTracker returns an empty LRU tracker.
func NewTracker[K comparable]() policy.Tracker[K] {
	return &lru[K]{m: make(map[K]*node[K])}
}

// Touch promotes k to MRU, inserting it if absent.
func (l *lru[K]) Touch(k K) {
	if n, ok := l.m[k]; ok {
		l.moveToFront(n)
		return
	}
	n := &node[K]{key: k}
	l.m[k] = n
	l.pushFront(n)
}

// Update promotes k to MRU; for LRU a write counts as recent use.
func (l *lru[K]) Update(k K) {
	if n, ok := l.m[k]; ok {
		l.moveToFront(n)
	}
}

// Victim pops the least recently used key other than skip.
func (l *lru[K]) Victim(skip K) (K, bool) {
	for n := l.tail; n != nil; n = n.prev {
		if n.key == skip {
			continue
		}
		l.unlink(n)
		delete(l.m, n.key)
		return n.key, true
	}
	var zero K
	return zero, false
}

// Remove drops k's slot if present.
func (l *lru[K]) Remove(k K) {
	n, ok := l.m[k]
	if !ok {
		return
	}
	l.unlink(n)
	delete(l.m, k)
}

// Len returns the number of tracked keys.
func (l *lru[K]) Len() int { return len(l.m) }

// Keys walks the list from MRU to LRU.
func (l *lru[K]) Keys() []K {
	out := make([]K, 0, len(l.m))
	for n := l.head; n != nil; n = n.next {
		out = append(out, n.key)
	}
	return out
}

// -------------------- list internals --------------------

func (l *lru[K]) pushFront(n *node[K]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lru[K]) moveToFront(n *node[K]) {
	if n == l.head {
		return
	}
	l.unlink(n)
	l.pushFront(n)
}

func (l *lru[K]) unlink(n *node[K]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if l.head == n {
		l.head = n.next
	}
	if l.tail == n {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
