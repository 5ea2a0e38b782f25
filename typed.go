package framealloc

import "unsafe"

// New returns a zeroed *T stored in memory from a, or nil if a cannot fit it.
// T must not contain Go pointers: allocator memory is not scanned by the
// garbage collector. The allocator's alignment must be at least T's.
func New[T any](a Allocator) *T {
	b := a.Allocate(sizeOf[T]())
	if b.IsNull() {
		return nil
	}
	clear(b.Bytes())
	return (*T)(b.Ptr)
}

// Delete returns the memory behind p, obtained from New with the same
// allocator, to a.
func Delete[T any](a Allocator, p *T) {
	if p == nil {
		return
	}
	a.Deallocate(BlockOf(p))
}

// BlockOf returns the block New handed out for p.
func BlockOf[T any](p *T) Block {
	if p == nil {
		return Block{}
	}
	return Block{Ptr: unsafe.Pointer(p), Size: sizeOf[T]()}
}

// PtrOf views b as a *T. It returns nil for the null block or a block too
// small to hold a T.
func PtrOf[T any](b Block) *T {
	if b.IsNull() || b.Size < sizeOf[T]() {
		return nil
	}
	return (*T)(b.Ptr)
}

// MakeSlice returns a zeroed slice of n elements stored in memory from a.
// It returns nil if n <= 0 or a cannot fit the slice.
func MakeSlice[T any](a Allocator, n int) []T {
	if n <= 0 {
		return nil
	}
	size := sizeOf[T]()
	if n > int(^uint(0)>>1)/size {
		return nil
	}
	b := a.Allocate(size * n)
	if b.IsNull() {
		return nil
	}
	clear(b.Bytes())
	return unsafe.Slice((*T)(b.Ptr), n)
}

// DeleteSlice returns the memory behind s, obtained from MakeSlice with the
// same allocator, to a. s must have its original length.
func DeleteSlice[T any](a Allocator, s []T) {
	if len(s) == 0 {
		return
	}
	a.Deallocate(Block{Ptr: unsafe.Pointer(unsafe.SliceData(s)), Size: sizeOf[T]() * len(s)})
}

// sizeOf returns the size of T, treating zero-size types as one byte so they
// still occupy a distinct block.
func sizeOf[T any]() int {
	var zero T
	if s := int(unsafe.Sizeof(zero)); s > 0 {
		return s
	}
	return 1
}
