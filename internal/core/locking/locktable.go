// Package locking provides an in-process mutual-exclusion registry keyed by
// product identifier. It serializes concurrent local stock mutations on the
// same product; cross-node conflicts are resolved by the version check in the
// versioned store, not here.
package locking

import (
	"sort"
	"sync"
)

// Table is a registry of per-product locks. Locks are created lazily and
// never removed; the set of products on a node is small and bounded.
type Table struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{locks: make(map[string]*sync.Mutex)}
}

// lockFor returns the lock for a product id, creating it if needed.
func (t *Table) lockFor(productID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[productID] = l
	}
	return l
}

// WithLock runs fn while holding the exclusive lock for a single product.
// The lock is released on every exit path, including panics.
func (t *Table) WithLock(productID string, fn func() error) error {
	return t.WithLocks([]string{productID}, fn)
}

// WithLocks acquires locks for every distinct product id in ascending
// lexicographic order, runs fn, and releases in reverse order. The fixed
// acquisition order prevents deadlock between operations touching
// overlapping product sets.
func (t *Table) WithLocks(productIDs []string, fn func() error) error {
	ids := dedupeSorted(productIDs)

	held := make([]*sync.Mutex, 0, len(ids))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}()

	for _, pid := range ids {
		l := t.lockFor(pid)
		l.Lock()
		held = append(held, l)
	}

	return fn()
}

// Size returns the number of registered product locks.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

func dedupeSorted(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
