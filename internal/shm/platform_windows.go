//go:build windows

package shm

import (
	"context"
	"errors"
)

// MapRegion is not implemented on Windows.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	return nil, errors.ErrUnsupported
}

// UnmapRegion is not implemented on Windows.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	return errors.ErrUnsupported
}

// RemoveRegion is not implemented on Windows.
func RemoveRegion(ctx context.Context, name string) error {
	return errors.ErrUnsupported
}
