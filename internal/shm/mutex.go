package shm

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// Mutex is a blocking lock over a word in shared memory. Waiters sleep in
// the kernel on Linux (futex) and back off with short sleeps elsewhere.
//
// The word holds unlocked, locked (no waiters) or contended (waiters may
// be sleeping), so an uncontended Lock/Unlock pair never enters the kernel.
type Mutex struct {
	word *uint32
}

// NewMutex returns a mutex over the 4-byte aligned word at p.
func NewMutex(p unsafe.Pointer) Mutex {
	return Mutex{word: (*uint32)(p)}
}

// Init resets the word to unlocked. Only the creator of a region calls it.
func (m Mutex) Init() {
	atomic.StoreUint32(m.word, unlocked)
}

func (m Mutex) Lock() {
	if atomic.CompareAndSwapUint32(m.word, unlocked, locked) {
		return
	}
	for i := 0; i < spinsBeforeYield; i++ {
		if atomic.LoadUint32(m.word) == unlocked && atomic.CompareAndSwapUint32(m.word, unlocked, locked) {
			return
		}
		runtime.Gosched()
	}
	for atomic.SwapUint32(m.word, contended) != unlocked {
		futexWait(m.word, contended)
	}
}

// TryLock acquires the mutex only if it is free.
func (m Mutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(m.word, unlocked, locked)
}

func (m Mutex) Unlock() {
	if atomic.SwapUint32(m.word, unlocked) == contended {
		futexWake(m.word, 1)
	}
}
