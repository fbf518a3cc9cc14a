package shm

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

const (
	unlocked uint32 = iota
	locked
	contended
)

// spinsBeforeYield bounds busy-waiting before the goroutine gives up its P.
const spinsBeforeYield = 64

// SpinLock is a test-and-set lock over a word that lives in shared memory.
// It suits critical sections that never block; the holder must not die
// while holding it.
type SpinLock struct {
	word *uint32
}

// NewSpinLock returns a lock over the 4-byte aligned word at p.
func NewSpinLock(p unsafe.Pointer) SpinLock {
	return SpinLock{word: (*uint32)(p)}
}

// Init resets the word to unlocked. Only the creator of a region calls it.
func (l SpinLock) Init() {
	atomic.StoreUint32(l.word, unlocked)
}

func (l SpinLock) Lock() {
	for spins := 1; ; spins++ {
		if atomic.LoadUint32(l.word) == unlocked && atomic.CompareAndSwapUint32(l.word, unlocked, locked) {
			return
		}
		if spins%spinsBeforeYield == 0 {
			runtime.Gosched()
		}
	}
}

// TryLock acquires the lock only if it is free.
func (l SpinLock) TryLock() bool {
	return atomic.CompareAndSwapUint32(l.word, unlocked, locked)
}

func (l SpinLock) Unlock() {
	atomic.StoreUint32(l.word, unlocked)
}
