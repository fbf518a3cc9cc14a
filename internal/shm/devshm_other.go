//go:build unix && !linux

package shm

import (
	"os"
	"path/filepath"
)

// regionDir holds the backing files on unix systems without /dev/shm.
func regionDir() string {
	return filepath.Join(os.TempDir(), "shmslab")
}

func canCreateOnDevShm(size uint64, path string) bool {
	return true
}
