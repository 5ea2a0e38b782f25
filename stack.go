package framealloc

import (
	"unsafe"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Stack is a LIFO sequence whose storage comes from a GlobalStackAllocator
// sized to the reserved capacity. It does not grow on Push: capacity is
// reserved up front with Reserve, and pushing past it panics.
//
// T must not contain Go pointers, since the storage is not scanned by the
// garbage collector. A Stack must not be copied; use Move or Clone.
type Stack[T any] struct {
	noCopy noCopy

	alloc *GlobalStackAllocator
	data  []T // full reserved capacity; [0, n) is live
	n     int

	align     int
	allocOpts []Option
	logger    log.Logger
}

// NewStack returns a stack with room for capacity elements. Options are
// passed to the internal allocator; the alignment is raised to T's if needed.
func NewStack[T any](capacity int, opts ...Option) (*Stack[T], error) {
	if capacity < 0 {
		return nil, errors.Wrapf(ErrBadCapacity, "capacity=%d", capacity)
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	var zero T
	align := max(int(unsafe.Alignof(zero)), o.alignment)
	s := &Stack[T]{
		align:     align,
		allocOpts: append(append([]Option(nil), opts...), WithAlignment(align)),
		logger:    o.logger,
	}
	if err := s.Reserve(capacity); err != nil {
		return nil, err
	}
	return s, nil
}

// Reserve grows the capacity to at least n elements. The live elements are
// copied into the new storage and the old storage is released. Reserve never
// shrinks.
func (s *Stack[T]) Reserve(n int) error {
	if n <= len(s.data) {
		return nil
	}
	if s.align == 0 {
		s.align = DefaultAlignment
	}
	if s.logger == nil {
		s.logger = log.NewNopLogger()
	}
	elem := sizeOf[T]()
	if n > (int(^uint(0)>>1)-s.align)/elem {
		return errors.Wrapf(ErrBadCapacity, "capacity=%d", n)
	}
	// The allocator rounds every request up to the alignment, so the region
	// must hold the rounded size.
	region := int(alignUp(uintptr(elem*n), uintptr(s.align)))
	g, err := NewGlobalStackAllocator(region, s.allocOpts...)
	if err != nil {
		return errors.Wrap(err, "reserve stack storage")
	}
	b := g.Allocate(elem * n)
	if b.IsNull() {
		_ = g.Release()
		return errors.Wrapf(ErrBadCapacity, "region too small for %d elements", n)
	}
	data := unsafe.Slice((*T)(b.Ptr), n)
	copy(data, s.data[:s.n])

	old := len(s.data)
	if s.alloc != nil {
		if err := s.alloc.Release(); err != nil {
			level.Warn(s.logger).Log("msg", "failed to release old stack storage", "err", err)
		}
	}
	s.alloc = g
	s.data = data
	if old > 0 {
		level.Debug(s.logger).Log("msg", "stack storage grown", "from", old, "to", n)
	}
	return nil
}

// Push appends x. It panics with ErrStackFull when Len() == Cap().
func (s *Stack[T]) Push(x T) {
	if s.n == len(s.data) {
		misuse("Stack.Push", ErrStackFull, "cap=%d", len(s.data))
	}
	s.data[s.n] = x
	s.n++
}

// Pop removes and returns the last element. It panics with ErrStackEmpty on
// an empty stack.
func (s *Stack[T]) Pop() T {
	if s.n == 0 {
		misuse("Stack.Pop", ErrStackEmpty, "")
	}
	s.n--
	return s.data[s.n]
}

// Peek returns the last element without removing it.
func (s *Stack[T]) Peek() T {
	if s.n == 0 {
		misuse("Stack.Peek", ErrStackEmpty, "")
	}
	return s.data[s.n-1]
}

// At returns element i. It panics with ErrIndexOutOfRange unless 0 <= i < Len().
func (s *Stack[T]) At(i int) T {
	return *s.ptr("Stack.At", i)
}

// Ptr returns a pointer to element i, valid until the next Reserve, Move or
// Release. It panics with ErrIndexOutOfRange unless 0 <= i < Len().
func (s *Stack[T]) Ptr(i int) *T {
	return s.ptr("Stack.Ptr", i)
}

func (s *Stack[T]) ptr(op string, i int) *T {
	if i < 0 || i >= s.n {
		misuse(op, ErrIndexOutOfRange, "index=%d len=%d", i, s.n)
	}
	return &s.data[i]
}

// Slice returns the live elements, oldest first. The slice aliases the
// stack's storage.
func (s *Stack[T]) Slice() []T {
	return s.data[:s.n:s.n]
}

// Len returns the number of elements.
func (s *Stack[T]) Len() int { return s.n }

// Cap returns the reserved capacity in elements.
func (s *Stack[T]) Cap() int { return len(s.data) }

// Reset drops every element in O(1) and keeps the storage.
func (s *Stack[T]) Reset() { s.n = 0 }

// Stats returns the internal allocator's usage.
func (s *Stack[T]) Stats() Stats {
	if s.alloc == nil {
		return Stats{}
	}
	return s.alloc.Stats()
}

// Move transfers the storage and elements to a new stack and leaves s empty
// with zero capacity.
func (s *Stack[T]) Move() *Stack[T] {
	moved := &Stack[T]{
		alloc:     s.alloc,
		data:      s.data,
		n:         s.n,
		align:     s.align,
		allocOpts: s.allocOpts,
		logger:    s.logger,
	}
	s.alloc = nil
	s.data = nil
	s.n = 0
	return moved
}

// Clone returns a stack with fresh storage of the same capacity holding a
// copy of every element.
func (s *Stack[T]) Clone() (*Stack[T], error) {
	c := &Stack[T]{align: s.align, allocOpts: s.allocOpts, logger: s.logger}
	if err := c.Reserve(len(s.data)); err != nil {
		return nil, err
	}
	c.n = copy(c.data, s.data[:s.n])
	return c, nil
}

// Release frees the storage. The stack is left empty with zero capacity and
// may be reused after another Reserve.
func (s *Stack[T]) Release() error {
	s.data = nil
	s.n = 0
	if s.alloc == nil {
		return nil
	}
	err := s.alloc.Release()
	s.alloc = nil
	return err
}
