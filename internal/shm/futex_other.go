//go:build !linux

package shm

import (
	"sync/atomic"
	"time"
)

const futexPollInterval = 50 * time.Microsecond

// futexWait polls the word; there is no portable cross-process wait queue.
func futexWait(addr *uint32, val uint32) {
	if atomic.LoadUint32(addr) == val {
		time.Sleep(futexPollInterval)
	}
}

func futexWake(addr *uint32, n int) {}
