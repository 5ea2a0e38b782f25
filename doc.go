// Package framealloc implements composable, deterministic allocators for
// real-time loops that must keep the general-purpose heap off their hot path.
//
// # Overview
//
// Every strategy satisfies the same small capability:
//
//	type Allocator interface {
//	    Allocate(n int) Block
//	    Deallocate(b Block)
//	    Owns(b Block) bool
//	}
//
// A Block is a {Ptr, Size} token. It does not own memory and must be handed
// back unchanged to the allocator that produced it. The zero Block is the
// null block and means the allocation could not be satisfied; callers check
// it with IsNull.
//
// # Strategies
//
//   - StackAllocator: bump allocator over a caller-provided fixed buffer,
//     meant for function-local scratch space. Never allocates by itself.
//   - GlobalStackAllocator: bump allocator over an owned, runtime-sized
//     region. Movable with Move, never copied.
//   - PoolAllocator: fixed-size blocks on an index-linked free list, O(1)
//     allocate and deallocate, no fragmentation.
//   - FallbackAllocator: tries a primary allocator and overflows into a
//     fallback one.
//   - Stack: LIFO container whose storage is a GlobalStackAllocator.
//
// # Basic Usage
//
//	frame, err := framealloc.NewGlobalStackAllocator(1 << 20)
//	if err != nil {
//	    return err
//	}
//	defer frame.Release()
//
//	for running {
//	    buf := frame.Allocate(4096)
//	    if buf.IsNull() {
//	        // out of frame memory: fall back, grow, or drop work
//	    }
//	    // ... use buf.Bytes() ...
//	    frame.Reset() // O(1), invalidates every block of this frame
//	}
//
// # Reclamation Rules
//
// Bump allocators reclaim space only in LIFO order: deallocating the most
// recent block gives its space back, deallocating anything else is a silent
// no-op. Reset and DeallocateAll invalidate every outstanding block at once.
// Nothing detects use of a block after it was invalidated.
//
// The pool allocator is strict. A size other than its block size, a block it
// did not hand out, or a double free panics with a *MisuseError wrapping
// ErrSizeMismatch, ErrForeignBlock or ErrDoubleFree. TryAllocate and
// TryDeallocate return those conditions as errors instead. Exhaustion is not
// misuse: Allocate returns the null block so a FallbackAllocator can take over.
//
// # Thread Safety
//
// No allocator or container in this package is safe for concurrent use.
// Wrap an allocator in SyncAllocator when it must be shared.
//
// # Memory
//
// Backing regions come from a RegionSource: HeapRegion (the default) or
// MmapRegion, which maps anonymous memory outside the Go heap. Typed helpers
// (New, MakeSlice) and Stack store values in that memory, which the garbage
// collector does not scan, so element types must not contain Go pointers.
package framealloc
