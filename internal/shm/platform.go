// Package shm contains the platform-specific pieces behind the shared memory
// pool and queue: named region mapping, process-shared locks and the
// process-local region registry.
package shm

import (
	"errors"
	"fmt"
	"strings"
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Name string
	Size int
	fd   int
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Name string
	// Size is required when Create is set and ignored otherwise; an opened
	// region is mapped with the size of the backing object.
	Size   int
	Create bool
}

var (
	// ErrInvalidName is returned for names that are empty or contain a path separator.
	ErrInvalidName = errors.New("shm: invalid region name")
	// ErrInvalidSize is returned for a non-positive create size.
	ErrInvalidSize = errors.New("shm: invalid region size")
	// ErrNoSpace is returned when the backing filesystem cannot hold the region.
	ErrNoSpace = errors.New("shm: not enough space left for region")
)

func verifyOptions(opts MapOptions) error {
	if opts.Name == "" || strings.ContainsRune(opts.Name, '/') {
		return fmt.Errorf("%w: %q", ErrInvalidName, opts.Name)
	}
	if opts.Create && opts.Size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, opts.Size)
	}
	return nil
}
