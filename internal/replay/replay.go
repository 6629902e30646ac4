// Package replay provides the bounded in-memory history of recent
// deliveries, for instant review without touching the archive.
package replay

import "sync"

// DefaultCapacity is the delivery history kept when none is configured.
const DefaultCapacity = 32

// Buffer is a fixed-capacity ring. Once full, each add evicts the oldest
// entry. Safe for concurrent use: the finalization goroutine writes while
// review readers iterate.
type Buffer[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int
	count int
}

// NewBuffer creates a ring holding up to capacity entries. Non-positive
// capacities fall back to the default.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Add appends an entry, evicting the oldest when full.
func (b *Buffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[b.head] = item
	b.head = (b.head + 1) % len(b.items)
	if b.count < len(b.items) {
		b.count++
	}
}

// Len returns how many entries are held.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Last returns the most recent entry. The second return is false when the
// buffer is empty.
func (b *Buffer[T]) Last() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var zero T
	if b.count == 0 {
		return zero, false
	}
	return b.items[(b.head-1+len(b.items))%len(b.items)], true
}

// All returns the held entries oldest first.
func (b *Buffer[T]) All() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, 0, b.count)
	start := b.head - b.count
	for i := 0; i < b.count; i++ {
		out = append(out, b.items[(start+i+len(b.items))%len(b.items)])
	}
	return out
}

// Find returns the first entry matching the predicate, newest first.
func (b *Buffer[T]) Find(match func(T) bool) (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var zero T
	for i := 0; i < b.count; i++ {
		item := b.items[(b.head-1-i+len(b.items))%len(b.items)]
		if match(item) {
			return item, true
		}
	}
	return zero, false
}
