// Package keylock provides mutual exclusion per key. Entries are dropped
// once no goroutine holds or waits on them.
package keylock

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

type Table[K comparable] struct {
	m *xsync.MapOf[K, *entry]
}

func New[K comparable]() *Table[K] {
	return &Table[K]{m: xsync.NewMapOf[K, *entry]()}
}

// Lock blocks until key is free and returns the matching unlock.
func (t *Table[K]) Lock(key K) (unlock func()) {
	e, _ := t.m.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			old = &entry{}
		}
		old.refs++
		return old, false
	})
	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			t.m.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
				old.refs--
				return old, old.refs == 0
			})
		})
	}
}

// Len is the number of keys currently held or awaited.
func (t *Table[K]) Len() int { return t.m.Size() }
