// Package alloc provides address allocation for the in-memory object store.
//
// Every group and dataset the store holds is identified by an address.
// Addresses are small integers handed out by an [Allocator]; when an
// object is destroyed its address goes back on a free list and is reused
// by the next allocation.
//
// # Allocator
//
// The [Allocator] type is safe for concurrent use and provides:
//
//   - Lowest-first reuse: released addresses are handed out again in
//     ascending order before the address space grows.
//   - Double-free detection: releasing an address twice is an error.
//   - Snapshots: [Allocator.Next] and [Allocator.FreeList] capture the
//     state and [Allocator.Restore] brings it back after a load.
//
// # Usage
//
//	a := alloc.New(1)   // address 0 is reserved
//	addr := a.Alloc()   // 1
//	err := a.Free(addr) // 1 is reused next
package alloc
