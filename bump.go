package framealloc

import (
	"unsafe"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// bumpState is the cursor bookkeeping shared by both bump allocators.
// Every live block lies in buf[:top].
type bumpState struct {
	buf    []byte  // aligned backing window, len == capacity
	top    uintptr // offset of the next free byte
	align  uintptr
	peak   uintptr // high-water mark of top since construction
	allocs uint64
}

func (s *bumpState) init(buf []byte, align int) {
	s.buf = buf
	s.top = 0
	s.align = uintptr(align)
	s.peak = 0
	s.allocs = 0
}

func (s *bumpState) allocate(n int) Block {
	if n <= 0 {
		return Block{}
	}
	free := uintptr(len(s.buf)) - s.top
	if uintptr(n) > free {
		return Block{}
	}
	size := alignUp(uintptr(n), s.align)
	if size > free {
		return Block{}
	}

	ptr := unsafe.Add(unsafe.Pointer(unsafe.SliceData(s.buf)), s.top)
	s.top += size
	if s.top > s.peak {
		s.peak = s.top
	}
	s.allocs++
	return Block{Ptr: ptr, Size: n}
}

// deallocate reclaims b only when it is the most recent live block.
// Any other block is left in place: the space comes back on reset.
func (s *bumpState) deallocate(b Block) {
	if !s.owns(b) {
		return
	}
	size := alignUp(uintptr(b.Size), s.align)
	off := b.addr() - s.base()
	if s.top >= size && s.top-size == off {
		s.top = off
	}
}

func (s *bumpState) owns(b Block) bool {
	if b.Ptr == nil || len(s.buf) == 0 {
		return false
	}
	addr, base := b.addr(), s.base()
	return addr >= base && addr < base+uintptr(len(s.buf))
}

// base is recomputed from buf on every use so a buffer that lives on a
// goroutine stack stays valid when the stack is copied.
func (s *bumpState) base() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(s.buf)))
}

func (s *bumpState) reset() {
	s.top = 0
}

func (s *bumpState) stats() Stats {
	return newStats(len(s.buf), int(s.top), int(s.peak), s.allocs)
}

// StackAllocator is a bump allocator over a fixed buffer supplied by the
// caller, typically a local array used as per-call scratch space. It never
// allocates on its own and must not be copied once initialised.
//
// A zero StackAllocator has no capacity: every Allocate fails.
type StackAllocator struct {
	noCopy noCopy
	s      bumpState
}

// Init points the allocator at buf and resets it. The start of buf is
// rounded up to alignment, so up to alignment-1 leading bytes go unused.
// Init panics if alignment is not a power of two.
func (a *StackAllocator) Init(buf []byte, alignment int) {
	if !isPowerOfTwo(alignment) {
		misuse("StackAllocator.Init", ErrBadAlignment, "alignment=%d", alignment)
	}
	if len(buf) == 0 {
		a.s.init(nil, alignment)
		return
	}
	start := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	off := int(alignUp(start, uintptr(alignment)) - start)
	if off >= len(buf) {
		a.s.init(nil, alignment)
		return
	}
	a.s.init(buf[off:len(buf):len(buf)], alignment)
}

// Allocate carves n bytes, rounded up to the alignment, off the top.
func (a *StackAllocator) Allocate(n int) Block { return a.s.allocate(n) }

// Deallocate reclaims b if it is the most recently allocated live block and
// is a no-op otherwise.
func (a *StackAllocator) Deallocate(b Block) { a.s.deallocate(b) }

// Owns reports whether b points into the allocator's buffer.
func (a *StackAllocator) Owns(b Block) bool { return a.s.owns(b) }

// DeallocateAll invalidates every outstanding block in O(1).
func (a *StackAllocator) DeallocateAll() { a.s.reset() }

// Reset is an alias for DeallocateAll.
func (a *StackAllocator) Reset() { a.s.reset() }

// Capacity returns the usable size of the buffer in bytes.
func (a *StackAllocator) Capacity() int { return len(a.s.buf) }

// Stats returns a snapshot of the allocator's usage.
func (a *StackAllocator) Stats() Stats { return a.s.stats() }

// GlobalStackAllocator is a bump allocator over a runtime-sized region it
// owns. Despite the name there is no process-wide instance: each value is
// constructed, moved and released explicitly.
//
// A GlobalStackAllocator must not be copied. Use Move to transfer ownership
// of the region.
type GlobalStackAllocator struct {
	noCopy   noCopy
	s        bumpState
	release  func() error
	released bool
	logger   log.Logger
}

// NewGlobalStackAllocator acquires a capacity-byte region and returns a bump
// allocator over it. Options select the alignment (DefaultAlignment), the
// region source (HeapRegion) and the logger.
func NewGlobalStackAllocator(capacity int, opts ...Option) (*GlobalStackAllocator, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	buf, release, err := acquireAligned(o.region, capacity, o.alignment)
	if err != nil {
		return nil, err
	}
	g := &GlobalStackAllocator{release: release, logger: o.logger}
	g.s.init(buf, o.alignment)
	level.Debug(g.logger).Log("msg", "acquired bump region", "capacity", capacity, "alignment", o.alignment)
	return g, nil
}

// Allocate carves n bytes, rounded up to the alignment, off the top.
// It returns the null block when the region cannot fit the request.
func (g *GlobalStackAllocator) Allocate(n int) Block {
	g.panicIfReleased("Allocate")
	return g.s.allocate(n)
}

// Deallocate reclaims b if it is the most recently allocated live block and
// is a no-op otherwise.
func (g *GlobalStackAllocator) Deallocate(b Block) {
	g.panicIfReleased("Deallocate")
	g.s.deallocate(b)
}

// Owns reports whether b points into the allocator's region.
func (g *GlobalStackAllocator) Owns(b Block) bool {
	if g.released {
		return false
	}
	return g.s.owns(b)
}

// DeallocateAll invalidates every outstanding block in O(1).
func (g *GlobalStackAllocator) DeallocateAll() {
	g.panicIfReleased("DeallocateAll")
	g.s.reset()
}

// Reset is an alias for DeallocateAll.
func (g *GlobalStackAllocator) Reset() { g.DeallocateAll() }

// Capacity returns the size of the region in bytes.
func (g *GlobalStackAllocator) Capacity() int { return len(g.s.buf) }

// Stats returns a snapshot of the allocator's usage.
func (g *GlobalStackAllocator) Stats() Stats { return g.s.stats() }

// Move transfers the region and cursor to a new allocator. g is left empty:
// it keeps working but every Allocate fails and Release is a no-op.
func (g *GlobalStackAllocator) Move() *GlobalStackAllocator {
	g.panicIfReleased("Move")
	moved := &GlobalStackAllocator{
		s:       g.s,
		release: g.release,
		logger:  g.logger,
	}
	g.s = bumpState{align: g.s.align}
	g.release = nil
	return moved
}

// Release hands the region back to its source. Any later operation other
// than Owns and Release panics. Releasing twice is a no-op.
func (g *GlobalStackAllocator) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	capacity := len(g.s.buf)
	g.s = bumpState{}
	if g.release == nil {
		return nil
	}
	err := g.release()
	g.release = nil
	if err != nil {
		level.Warn(g.logger).Log("msg", "failed to release bump region", "capacity", capacity, "err", err)
		return err
	}
	level.Debug(g.logger).Log("msg", "released bump region", "capacity", capacity)
	return nil
}

func (g *GlobalStackAllocator) panicIfReleased(op string) {
	if g.released {
		misuse("GlobalStackAllocator."+op, ErrReleased, "")
	}
}

var (
	_ Allocator = (*StackAllocator)(nil)
	_ Resetter  = (*StackAllocator)(nil)
	_ Allocator = (*GlobalStackAllocator)(nil)
	_ Resetter  = (*GlobalStackAllocator)(nil)
	_ Releaser  = (*GlobalStackAllocator)(nil)
)
