package shm

import "errors"

var (
	// ErrNotPool is returned by OpenPool when the region does not carry the pool tag:
	// wrong memory, an uninitialised region or a layout from another version.
	ErrNotPool = errors.New("shm: region is not a pool")
	// ErrNotQueue is returned by OpenQueue when the region does not carry the queue tag.
	ErrNotQueue = errors.New("shm: region is not a queue")

	ErrInvalidAlignment = errors.New("shm: alignment is not a power of two")
	ErrInvalidSize      = errors.New("shm: invalid size")
	ErrRegionTooSmall   = errors.New("shm: region too small")
	ErrMisalignedRegion = errors.New("shm: region base is not 8-byte aligned")
	ErrCorruptHeader    = errors.New("shm: corrupt header")

	// ErrShortBuffer is returned by Queue.Get when the head record does not fit
	// the caller's buffer. The record stays in the queue.
	ErrShortBuffer = errors.New("shm: buffer too small for record")
	// ErrEmptyRecord is returned by Queue.Put for zero-length payloads, which
	// would be indistinguishable from the "queue full" result.
	ErrEmptyRecord    = errors.New("shm: empty record")
	ErrRecordTooLarge = errors.New("shm: record length overflows the record header")
)
