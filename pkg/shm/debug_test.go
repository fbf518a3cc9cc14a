package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	p, region := newTestPool(t, 32, 4, 8)
	p.Allocate()
	assert.Equal(t, "pool state:created elemsize:32 count:4 use:1 datapos:16 first:1 opens:0", Describe(region))

	q, region := newTestQueue(t, 64)
	_, err := q.Put([]byte("abc"))
	assert.NoError(t, err)
	_, err = OpenQueue(region)
	assert.NoError(t, err)
	assert.Equal(t, "queue state:opened size:64 readpos:0 writepos:7 pending:7 opens:1", Describe(region))

	assert.Equal(t, "unknown region: 64 bytes", Describe(alignedRegion(64, 8)))
	assert.Equal(t, "unknown region: 4 bytes", Describe(make([]byte, 4)))
}
