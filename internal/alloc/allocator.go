// Package alloc hands out object addresses for the in-memory store.
package alloc

import (
	"fmt"
	"sort"
	"sync"
)

// Allocator manages object addresses. New addresses are taken from the
// free list first (lowest address wins) and otherwise from the end of the
// address space.
type Allocator struct {
	mu sync.Mutex

	// next is the next never-used address
	next uint64

	// base is the minimum address that can be allocated
	base uint64

	// free holds released addresses in ascending order
	free []uint64

	stats Stats
}

// Stats contains allocation statistics.
type Stats struct {
	TotalAllocations uint64 // Number of Alloc calls
	TotalFrees       uint64 // Number of successful Free calls
	Reused           uint64 // Allocations served from the free list
	Live             uint64 // Addresses currently in use
}

// New creates a new Allocator starting at the given base address.
func New(base uint64) *Allocator {
	return &Allocator{
		next: base,
		base: base,
	}
}

// Alloc returns an unused address.
func (a *Allocator) Alloc() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalAllocations++
	a.stats.Live++

	if len(a.free) > 0 {
		addr := a.free[0]
		a.free = a.free[1:]
		a.stats.Reused++
		return addr
	}

	addr := a.next
	a.next++
	return addr
}

// Free releases addr for reuse.
func (a *Allocator) Free(addr uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if addr < a.base || addr >= a.next {
		return fmt.Errorf("address 0x%x was never allocated", addr)
	}

	i := sort.Search(len(a.free), func(i int) bool { return a.free[i] >= addr })
	if i < len(a.free) && a.free[i] == addr {
		return fmt.Errorf("address 0x%x freed twice", addr)
	}

	a.free = append(a.free, 0)
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = addr

	a.stats.TotalFrees++
	a.stats.Live--
	return nil
}

// Next returns the next never-used address.
func (a *Allocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Base returns the base address.
func (a *Allocator) Base() uint64 {
	return a.base
}

// FreeList returns a copy of the released addresses, ascending.
func (a *Allocator) FreeList() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := make([]uint64, len(a.free))
	copy(result, a.free)
	return result
}

// Restore resets the allocator to a previously saved state, as produced
// by Next and FreeList.
func (a *Allocator) Restore(next uint64, free []uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if next < a.base {
		return fmt.Errorf("next address 0x%x is before base 0x%x", next, a.base)
	}
	sorted := append([]uint64(nil), free...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, addr := range sorted {
		if addr < a.base || addr >= next {
			return fmt.Errorf("free address 0x%x outside [0x%x, 0x%x)", addr, a.base, next)
		}
		if i > 0 && sorted[i-1] == addr {
			return fmt.Errorf("free address 0x%x listed twice", addr)
		}
	}

	a.next = next
	a.free = sorted
	a.stats = Stats{Live: next - a.base - uint64(len(sorted))}
	return nil
}

// Stats returns a copy of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Reset resets the allocator to its initial state.
func (a *Allocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.next = a.base
	a.free = nil
	a.stats = Stats{}
}
