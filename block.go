package framealloc

import "unsafe"

// DefaultAlignment is the alignment used when an allocator is built without
// an explicit one. It covers every scalar and SIMD-friendly vector type the
// frame loop stores.
const DefaultAlignment = 16

// Block identifies a contiguous byte range handed out by an allocator.
// It does not own memory: it must be passed back, unmodified, to the
// allocator that produced it.
//
// The zero Block (nil pointer, zero size) is the null block and signals
// that an allocation could not be satisfied.
type Block struct {
	Ptr  unsafe.Pointer
	Size int
}

// IsNull reports whether b is the null block.
func (b Block) IsNull() bool {
	return b.Ptr == nil
}

// Bytes returns the block as a byte slice of length Size.
// The slice aliases allocator memory and is only valid while the block is live.
func (b Block) Bytes() []byte {
	if b.Ptr == nil || b.Size <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(b.Ptr), b.Size)
}

// addr returns the block start as an integer address.
func (b Block) addr() uintptr {
	return uintptr(b.Ptr)
}

// Allocator is the capability every allocation strategy in this package
// satisfies.
//
// Allocate returns a block of at least n bytes, or the null block when the
// backing region cannot satisfy the request. A failed Allocate leaves the
// allocator unchanged.
//
// Deallocate returns a live block. Passing a block for which Owns reports
// false is a caller error; what happens then depends on the allocator.
//
// Owns is a pure membership test.
type Allocator interface {
	Allocate(n int) Block
	Deallocate(b Block)
	Owns(b Block) bool
}

// Resetter is implemented by allocators that can invalidate every
// outstanding block at once.
type Resetter interface {
	DeallocateAll()
}

// Releaser is implemented by allocators that own a region which must be
// handed back to its source.
type Releaser interface {
	Release() error
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// alignUp rounds n up to a multiple of align, which must be a power of two.
func alignUp(n, align uintptr) uintptr {
	mask := align - 1
	return (n + mask) &^ mask
}

// alignedRegion returns a capacity-byte window of buf whose start address is
// a multiple of align. buf must be at least capacity+align-1 bytes long.
func alignedRegion(buf []byte, capacity, align int) []byte {
	if capacity == 0 {
		return buf[:0:0]
	}
	start := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	off := int(alignUp(start, uintptr(align)) - start)
	return buf[off : off+capacity : off+capacity]
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

// Lock is a no-op used by the go vet copylocks checker.
func (*noCopy) Lock() {}

// Unlock is a no-op used by the go vet copylocks checker.
func (*noCopy) Unlock() {}
