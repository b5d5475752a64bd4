// Package util holds small concurrency helpers shared by the client.
package util

import "sync"

// IDAllocator hands out channel ids in [min, max]. Allocation continues from
// the last id handed out, so a just-released id is not reused straight away
// and a late frame for it is less likely to reach a new owner.
type IDAllocator struct {
	mu       sync.Mutex
	min, max uint16
	used     []bool
	next     uint16
}

// NewIDAllocator creates an allocator for ids min..max inclusive
func NewIDAllocator(min, max uint16) *IDAllocator {
	if max < min {
		max = min
	}
	return &IDAllocator{
		min:  min,
		max:  max,
		used: make([]bool, int(max-min)+1),
		next: min,
	}
}

// Allocate returns a free id, or false when every id is taken
func (a *IDAllocator) Allocate() (uint16, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := len(a.used)
	start := int(a.next - a.min)
	for i := 0; i < size; i++ {
		idx := (start + i) % size
		if !a.used[idx] {
			a.used[idx] = true
			a.next = a.min + uint16((idx+1)%size)
			return a.min + uint16(idx), true
		}
	}
	return 0, false
}

// Release returns an id to the pool. It reports false if the id was not taken.
func (a *IDAllocator) Release(id uint16) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id < a.min || id > a.max || !a.used[id-a.min] {
		return false
	}
	a.used[id-a.min] = false
	return true
}
