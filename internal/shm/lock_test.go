package shm

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

type locker interface {
	Lock()
	Unlock()
	TryLock() bool
}

func contend(t *testing.T, l locker) {
	const (
		workers = 8
		rounds  = 5000
	)
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*rounds, counter)
}

func TestSpinLock(t *testing.T) {
	var word uint32 = 7
	l := NewSpinLock(unsafe.Pointer(&word))
	l.Init()
	assert.Equal(t, unlocked, word)

	assert.True(t, l.TryLock())
	assert.False(t, l.TryLock())
	l.Unlock()
	assert.Equal(t, unlocked, word)

	contend(t, l)
}

func TestMutex(t *testing.T) {
	var word uint32
	m := NewMutex(unsafe.Pointer(&word))
	m.Init()

	assert.True(t, m.TryLock())
	assert.False(t, m.TryLock())
	m.Unlock()
	assert.Equal(t, unlocked, word)

	contend(t, m)
	assert.Equal(t, unlocked, word)
}

func TestMutexHandlesShareWord(t *testing.T) {
	var word uint32
	a := NewMutex(unsafe.Pointer(&word))
	b := NewMutex(unsafe.Pointer(&word))
	a.Init()

	a.Lock()
	assert.False(t, b.TryLock())
	done := make(chan struct{})
	go func() {
		b.Lock()
		b.Unlock()
		close(done)
	}()
	a.Unlock()
	<-done
}
