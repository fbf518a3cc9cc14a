package health

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/shmslab/pkg/shm"
)

func TestMonitorWithPool(t *testing.T) {
	size, err := shm.PoolSize(64, 4, 8)
	require.NoError(t, err)
	buf := make([]byte, size+8)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&buf[0])) % 8); rem != 0 {
		off = 8 - rem
	}
	region := buf[off : off+size]
	p, err := shm.CreatePool(region, 64, 4, 8)
	require.NoError(t, err)

	m := NewMonitor(0.5)
	m.Add("pool", p)
	assert.NoError(t, m.Check("pool"))

	for i := 0; i < 3; i++ {
		require.NotNil(t, p.Allocate())
	}
	assert.ErrorIs(t, m.Check("pool"), ErrSaturated)

	clear(region)
	assert.ErrorIs(t, m.Live("pool"), shm.ErrNotPool)
}
