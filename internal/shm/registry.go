package shm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// ErrRegionBusy is returned when a process tries to create a region whose
// name it already has mapped.
var ErrRegionBusy = errors.New("shm: region already mapped in this process")

type registryEntry struct {
	region *MappedRegion
	refs   atomic.Int32
}

func newRegistryEntry(region *MappedRegion) *registryEntry {
	e := &registryEntry{region: region}
	e.refs.Store(1)
	return e
}

// Registry reference-counts the regions mapped by this process, keyed by
// name, so repeated opens share one mapping.
type Registry struct {
	entries cmap.ConcurrentMap[string, *registryEntry]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: cmap.New[*registryEntry]()}
}

// DefaultRegistry is the registry used by the public region API.
var DefaultRegistry = NewRegistry()

// Create maps a new region and registers it with one reference.
func (r *Registry) Create(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	opts.Create = true
	var (
		mapErr  error
		created *MappedRegion
	)
	r.entries.Upsert(opts.Name, nil, func(exist bool, cur *registryEntry, _ *registryEntry) *registryEntry {
		if exist && cur != nil {
			mapErr = fmt.Errorf("%w: %s", ErrRegionBusy, opts.Name)
			return cur
		}
		region, err := MapRegion(ctx, opts)
		if err != nil {
			mapErr = err
			return nil
		}
		created = region
		return newRegistryEntry(region)
	})
	if mapErr != nil {
		r.dropEmpty(opts.Name)
		return nil, mapErr
	}
	return created, nil
}

// Acquire returns the mapping for name, mapping it on first use.
func (r *Registry) Acquire(ctx context.Context, name string) (*MappedRegion, error) {
	var (
		mapErr error
		mapped *MappedRegion
	)
	r.entries.Upsert(name, nil, func(exist bool, cur *registryEntry, _ *registryEntry) *registryEntry {
		if exist && cur != nil {
			cur.refs.Add(1)
			mapped = cur.region
			return cur
		}
		region, err := MapRegion(ctx, MapOptions{Name: name})
		if err != nil {
			mapErr = err
			return nil
		}
		mapped = region
		return newRegistryEntry(region)
	})
	if mapErr != nil {
		r.dropEmpty(name)
		return nil, mapErr
	}
	return mapped, nil
}

// Release drops one reference and unmaps the region when none remain.
func (r *Registry) Release(ctx context.Context, name string) error {
	var unmapErr error
	r.entries.RemoveCb(name, func(_ string, e *registryEntry, exists bool) bool {
		if !exists || e == nil {
			return exists
		}
		if e.refs.Add(-1) > 0 {
			return false
		}
		unmapErr = UnmapRegion(ctx, e.region)
		return true
	})
	return unmapErr
}

// Refs returns the number of live references to name.
func (r *Registry) Refs(name string) int {
	e, ok := r.entries.Get(name)
	if !ok || e == nil {
		return 0
	}
	return int(e.refs.Load())
}

// dropEmpty removes the placeholder left by a failed mapping.
func (r *Registry) dropEmpty(name string) {
	r.entries.RemoveCb(name, func(_ string, e *registryEntry, exists bool) bool {
		return exists && e == nil
	})
}
