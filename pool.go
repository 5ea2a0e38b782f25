package framealloc

import (
	"unsafe"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// nilNode terminates the free list.
const nilNode = -1

// poolNode is the free-list record for one slot. Node i always describes
// slot i; nodes link to each other by index.
type poolNode struct {
	next      int32
	allocated bool
}

// PoolAllocator hands out fixed-size blocks from a preallocated slot array.
// Allocate and Deallocate are O(1) and never fragment: freed slots go back
// on the head of a singly linked free list and are reused first.
//
// Misuse is loud. Allocate panics on a size other than BlockSize, and
// Deallocate panics on foreign blocks and double frees. TryAllocate and
// TryDeallocate report the same conditions as errors.
type PoolAllocator struct {
	noCopy noCopy

	size   int     // requested block size
	stride uintptr // distance between slots, size rounded up to the alignment
	base   uintptr
	buf    []byte
	nodes  []poolNode
	head   int32
	free   int

	peak    int
	allocs  uint64
	release func() error
	logger  log.Logger
}

// NewPoolAllocator builds a pool of capacity blocks of size bytes each. The
// slot storage and free-list nodes are acquired eagerly.
func NewPoolAllocator(size, capacity int, opts ...Option) (*PoolAllocator, error) {
	if size <= 0 || capacity < 0 || capacity > 1<<31-1 {
		return nil, errors.Wrapf(ErrBadCapacity, "size=%d capacity=%d", size, capacity)
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	stride := alignUp(uintptr(size), uintptr(o.alignment))
	buf, release, err := acquireAligned(o.region, int(stride)*capacity, o.alignment)
	if err != nil {
		return nil, err
	}
	p := &PoolAllocator{
		size:    size,
		stride:  stride,
		buf:     buf,
		base:    uintptr(unsafe.Pointer(unsafe.SliceData(buf))),
		nodes:   make([]poolNode, capacity),
		release: release,
		logger:  o.logger,
	}
	p.DeallocateAll()
	level.Debug(p.logger).Log("msg", "acquired pool region", "block_size", size, "stride", stride, "capacity", capacity)
	return p, nil
}

// PoolFor builds a pool whose blocks fit one T each. The alignment is
// raised to T's if the options ask for less.
func PoolFor[T any](capacity int, opts ...Option) (*PoolAllocator, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	var zero T
	align := max(int(unsafe.Alignof(zero)), o.alignment)
	all := append(append([]Option(nil), opts...), WithAlignment(align))
	return NewPoolAllocator(sizeOf[T](), capacity, all...)
}

// Allocate pops a free slot. n must equal BlockSize; an exhausted pool
// returns the null block.
func (p *PoolAllocator) Allocate(n int) Block {
	b, err := p.TryAllocate(n)
	if err != nil {
		if errors.Is(err, ErrPoolExhausted) {
			return Block{}
		}
		misuse("PoolAllocator.Allocate", err, "n=%d block_size=%d", n, p.size)
	}
	return b
}

// TryAllocate is Allocate with the failure reported as ErrPoolExhausted or
// ErrSizeMismatch. The pool is unchanged on error.
func (p *PoolAllocator) TryAllocate(n int) (Block, error) {
	if n != p.size {
		return Block{}, ErrSizeMismatch
	}
	if p.head == nilNode {
		return Block{}, ErrPoolExhausted
	}
	i := p.head
	node := &p.nodes[i]
	p.head = node.next
	node.next = nilNode
	node.allocated = true
	p.free--
	p.allocs++
	if used := len(p.nodes) - p.free; used > p.peak {
		p.peak = used
	}
	return p.slot(int(i)), nil
}

// Deallocate returns b to the head of the free list. It panics with
// ErrForeignBlock or ErrDoubleFree when b cannot be returned.
func (p *PoolAllocator) Deallocate(b Block) {
	if err := p.TryDeallocate(b); err != nil {
		level.Error(p.logger).Log("msg", "invalid pool deallocation", "ptr", b.Ptr, "size", b.Size, "err", err)
		misuse("PoolAllocator.Deallocate", err, "ptr=%p", b.Ptr)
	}
}

// TryDeallocate is Deallocate with misuse reported as an error. The pool is
// unchanged on error.
func (p *PoolAllocator) TryDeallocate(b Block) error {
	i, ok := p.Index(b)
	if !ok {
		return ErrForeignBlock
	}
	node := &p.nodes[i]
	if !node.allocated {
		return ErrDoubleFree
	}
	node.allocated = false
	node.next = p.head
	p.head = int32(i)
	p.free++
	return nil
}

// Owns reports whether b points at a slot boundary inside the storage.
func (p *PoolAllocator) Owns(b Block) bool {
	_, ok := p.Index(b)
	return ok
}

// Index resolves b to its slot index. It reports false for pointers outside
// the storage or not on a slot boundary.
func (p *PoolAllocator) Index(b Block) (int, bool) {
	if b.Ptr == nil || len(p.buf) == 0 {
		return 0, false
	}
	addr := b.addr()
	if addr < p.base {
		return 0, false
	}
	off := addr - p.base
	if off >= uintptr(len(p.buf)) || off%p.stride != 0 {
		return 0, false
	}
	return int(off / p.stride), true
}

// Slot returns the block for slot i whether or not it is allocated.
// It panics with ErrIndexOutOfRange when i is outside [0, Cap()).
func (p *PoolAllocator) Slot(i int) Block {
	if i < 0 || i >= len(p.nodes) {
		misuse("PoolAllocator.Slot", ErrIndexOutOfRange, "index=%d cap=%d", i, len(p.nodes))
	}
	return p.slot(i)
}

func (p *PoolAllocator) slot(i int) Block {
	ptr := unsafe.Add(unsafe.Pointer(unsafe.SliceData(p.buf)), uintptr(i)*p.stride)
	return Block{Ptr: ptr, Size: p.size}
}

// DeallocateAll returns every slot to the free list, lowest index first.
func (p *PoolAllocator) DeallocateAll() {
	for i := range p.nodes {
		p.nodes[i] = poolNode{next: int32(i + 1)}
	}
	if n := len(p.nodes); n > 0 {
		p.nodes[n-1].next = nilNode
		p.head = 0
	} else {
		p.head = nilNode
	}
	p.free = len(p.nodes)
}

// IsAllocated reports whether slot i is currently handed out.
func (p *PoolAllocator) IsAllocated(i int) bool {
	return i >= 0 && i < len(p.nodes) && p.nodes[i].allocated
}

// BlockSize returns the size of every block the pool hands out.
func (p *PoolAllocator) BlockSize() int { return p.size }

// Cap returns the number of slots.
func (p *PoolAllocator) Cap() int { return len(p.nodes) }

// Len returns the number of allocated slots.
func (p *PoolAllocator) Len() int { return len(p.nodes) - p.free }

// Free returns the number of slots on the free list.
func (p *PoolAllocator) Free() int { return p.free }

// Stats returns a snapshot of the pool's usage in bytes.
func (p *PoolAllocator) Stats() Stats {
	stride := int(p.stride)
	return newStats(len(p.buf), p.Len()*stride, p.peak*stride, p.allocs)
}

// Release hands the slot storage back to its source. The pool must not be
// used afterwards.
func (p *PoolAllocator) Release() error {
	p.buf = nil
	p.nodes = nil
	p.head = nilNode
	p.free = 0
	if p.release == nil {
		return nil
	}
	err := p.release()
	p.release = nil
	return err
}

var (
	_ Allocator = (*PoolAllocator)(nil)
	_ Resetter  = (*PoolAllocator)(nil)
	_ Releaser  = (*PoolAllocator)(nil)
)
