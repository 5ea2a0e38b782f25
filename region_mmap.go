//go:build linux || darwin || freebsd || netbsd || openbsd

package framealloc

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapRegion acquires regions as private anonymous mappings, keeping large
// arenas outside the garbage-collected heap. Release unmaps the region.
func MmapRegion(size int) ([]byte, func() error, error) {
	if size < 0 {
		return nil, nil, ErrBadCapacity
	}
	if size == 0 {
		return []byte{}, func() error { return nil }, nil
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "framealloc: mmap %d bytes", size)
	}
	release := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return errors.Wrap(err, "framealloc: munmap")
	}
	return data, release, nil
}
