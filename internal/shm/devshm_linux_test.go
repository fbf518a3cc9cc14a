//go:build linux

package shm

import (
	"math"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
)

func TestCanCreateOnDevShm(t *testing.T) {
	// only paths under /dev/shm are checked
	assert.True(t, canCreateOnDevShm(math.MaxUint64, "/tmp/shmslab"))

	_, err := disk.Usage(devShmPath)
	if err != nil {
		t.Skipf("no %s: %v", devShmPath, err)
	}
	assert.True(t, canCreateOnDevShm(0, regionPath("a")))
	assert.False(t, canCreateOnDevShm(math.MaxUint64, regionPath("b")))
	assert.Equal(t, "/dev/shm/c", regionPath("c"))
}
