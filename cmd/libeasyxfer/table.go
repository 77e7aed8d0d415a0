package main

import "sync"

// table hands out non-zero uint32 tokens for Go values that C callers
// refer to. Token 0 is never issued.
type table[T any] struct {
	mu    sync.Mutex
	next  uint32
	items map[uint32]T
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[uint32]T)}
}

func (t *table[T]) add(v T) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		t.next++
		if t.next == 0 {
			continue
		}
		if _, used := t.items[t.next]; !used {
			break
		}
	}
	t.items[t.next] = v
	return t.next
}

// get returns the zero value for unknown tokens.
func (t *table[T]) get(id uint32) T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items[id]
}

func (t *table[T]) remove(id uint32) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[id]
	delete(t.items, id)
	return v, ok
}
