// Package shm provides a fixed-size slab pool and a length-framed byte queue
// that live entirely inside a shared memory region, so unrelated processes
// mapping the same region can allocate, exchange and free data without
// copying it through the kernel.
//
// The creating process sizes the structure, obtains a region and
// initialises it in place; every other process opens the same bytes, which
// only checks the structure's tag:
//
//	size, _ := shm.PoolSize(128, 1024, 64)
//	region, err := shm.CreateRegion(ctx, "orders", size)
//	// ...
//	pool, err := shm.CreatePool(region.Bytes(), 128, 1024, 64)
//
//	// in another process
//	region, err := shm.OpenRegion(ctx, "orders")
//	pool, err := shm.OpenPool(region.Bytes())
//
// Slots cross process boundaries as offsets (Pool.Offset / Pool.Pointer),
// never as addresses. Nothing in this package blocks waiting for space or
// data: an exhausted pool returns nil and a full or empty queue returns 0,
// and retrying is up to the caller (see package transport).
//
// Releasing a slot that is already free is ignored, but a stale release
// after someone else allocated the slot frees their slot. Clearing a pool
// that still has live slots is likewise a caller error.
package shm
