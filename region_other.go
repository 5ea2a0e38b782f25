//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package framealloc

// MmapRegion falls back to HeapRegion where anonymous mappings are not available.
func MmapRegion(size int) ([]byte, func() error, error) {
	return HeapRegion(size)
}
