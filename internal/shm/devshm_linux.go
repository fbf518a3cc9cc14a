//go:build linux

package shm

import (
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

const devShmPath = "/dev/shm"

func regionDir() string {
	return devShmPath
}

// canCreateOnDevShm reports whether /dev/shm has size bytes free. Paths
// outside /dev/shm are not checked.
func canCreateOnDevShm(size uint64, path string) bool {
	if !strings.HasPrefix(path, devShmPath) {
		return true
	}
	stat, err := disk.Usage(devShmPath)
	if err != nil {
		platformLogger.Warnf("could not read shared memory usage: %s", err.Error())
		return false
	}
	return stat.Free >= size
}
