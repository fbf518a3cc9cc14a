//go:build unix

package shm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/srediag/shmslab/internal/logger"
)

var platformLogger = logger.New("shm", nil)

func regionPath(name string) string {
	return filepath.Join(regionDir(), name)
}

// MapRegion maps or creates a shared memory region.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := verifyOptions(opts); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := regionPath(opts.Name)
	flags := unix.O_RDWR | unix.O_CLOEXEC
	if opts.Create {
		flags |= unix.O_CREAT
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
		if !canCreateOnDevShm(uint64(opts.Size), path) {
			return nil, fmt.Errorf("%w: path %s, size %d", ErrNoSpace, path, opts.Size)
		}
	}
	fd, err := unix.Open(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	size := opts.Size
	if opts.Create {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("ftruncate: %w", err)
		}
	} else {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("fstat: %w", err)
		}
		size = int(st.Size)
		if size <= 0 {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidSize, path)
		}
	}
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}
	platformLogger.Debugf("mapped region %s size %d create %v", path, size, opts.Create)
	return &MappedRegion{
		Addr: addr,
		Name: opts.Name,
		Size: size,
		fd:   fd,
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region. The backing name survives.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	var errs []error
	if err := unix.Munmap(region.Addr); err != nil {
		errs = append(errs, fmt.Errorf("munmap: %w", err))
	}
	region.Addr = nil
	if region.fd >= 0 {
		if err := unix.Close(region.fd); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
		region.fd = -1
	}
	platformLogger.Debugf("unmapped region %s", region.Name)
	return errors.Join(errs...)
}

// RemoveRegion destroys the backing name. Mappings that are still open stay valid.
func RemoveRegion(ctx context.Context, name string) error {
	if err := verifyOptions(MapOptions{Name: name}); err != nil {
		return err
	}
	path := regionPath(name)
	if err := unix.Unlink(path); err != nil {
		return fmt.Errorf("unlink %s: %w", path, err)
	}
	platformLogger.Infof("removed region %s", path)
	return nil
}
