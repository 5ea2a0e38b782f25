package framealloc

// RegionSource acquires a raw byte range of exactly size bytes together with
// the function that hands it back. It is the leaf every owned region in this
// package comes from.
type RegionSource func(size int) (buf []byte, release func() error, err error)

// HeapRegion acquires regions from the Go heap. Release drops the reference
// and leaves reclamation to the garbage collector.
func HeapRegion(size int) ([]byte, func() error, error) {
	if size < 0 {
		return nil, nil, ErrBadCapacity
	}
	buf := make([]byte, size)
	return buf, func() error { return nil }, nil
}

// acquireAligned takes capacity+align-1 bytes from src and returns the
// capacity-byte window whose start is aligned.
func acquireAligned(src RegionSource, capacity, align int) ([]byte, func() error, error) {
	if capacity < 0 {
		return nil, nil, ErrBadCapacity
	}
	if capacity == 0 {
		return nil, func() error { return nil }, nil
	}
	buf, release, err := src(capacity + align - 1)
	if err != nil {
		return nil, nil, err
	}
	return alignedRegion(buf, capacity, align), release, nil
}
