package shm

import (
	"context"
	"errors"
	"sync/atomic"

	internalshm "github.com/srediag/shmslab/internal/shm"
)

// ErrRegionClosed is returned when a closed region is closed again.
var ErrRegionClosed = errors.New("shm: region closed")

// Region is a named shared memory mapping. Mappings are shared per name
// within a process and reference-counted; Close drops one reference.
type Region struct {
	name     string
	mapped   *internalshm.MappedRegion
	registry *internalshm.Registry
	closed   atomic.Bool
}

// CreateRegion creates (or truncates) the named backing object to size
// bytes and maps it. It fails if this process already maps the name.
func CreateRegion(ctx context.Context, name string, size int) (*Region, error) {
	mapped, err := internalshm.DefaultRegistry.Create(ctx, internalshm.MapOptions{
		Name: name,
		Size: size,
	})
	if err != nil {
		return nil, err
	}
	return &Region{name: name, mapped: mapped, registry: internalshm.DefaultRegistry}, nil
}

// OpenRegion maps an existing named region with its actual size, which
// callers compare against PoolSize/QueueSize before use.
func OpenRegion(ctx context.Context, name string) (*Region, error) {
	mapped, err := internalshm.DefaultRegistry.Acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Region{name: name, mapped: mapped, registry: internalshm.DefaultRegistry}, nil
}

// RemoveRegion destroys the backing name. Do it once every participant
// has closed the region.
func RemoveRegion(ctx context.Context, name string) error {
	return internalshm.RemoveRegion(ctx, name)
}

func (r *Region) Name() string { return r.name }

func (r *Region) Size() int { return r.mapped.Size }

// Bytes returns the mapped memory. It must not be used after Close.
func (r *Region) Bytes() []byte { return r.mapped.Addr }

// Close releases this handle's reference to the mapping. The backing name survives.
func (r *Region) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrRegionClosed
	}
	return r.registry.Release(context.Background(), r.name)
}
