package framealloc

import "sync"

// SyncAllocator is a mutex-protected wrapper around an allocator for callers
// that must share it between goroutines. Every allocator in this package is
// single-threaded; this is the external lock they expect.
type SyncAllocator[A Allocator] struct {
	mu sync.Mutex
	a  A
}

// NewSyncAllocator wraps a.
func NewSyncAllocator[A Allocator](a A) *SyncAllocator[A] {
	return &SyncAllocator[A]{a: a}
}

// Allocate thread-safely allocates n bytes.
func (s *SyncAllocator[A]) Allocate(n int) Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Allocate(n)
}

// Deallocate thread-safely returns b.
func (s *SyncAllocator[A]) Deallocate(b Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Deallocate(b)
}

// Owns thread-safely reports whether the wrapped allocator owns b.
func (s *SyncAllocator[A]) Owns(b Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Owns(b)
}

// DeallocateAll thread-safely resets the wrapped allocator if it supports it.
func (s *SyncAllocator[A]) DeallocateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := any(s.a).(Resetter); ok {
		r.DeallocateAll()
	}
}

// Stats thread-safely returns the wrapped allocator's statistics, or zero
// Stats if it does not report any.
func (s *SyncAllocator[A]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := any(s.a).(StatsReporter); ok {
		return r.Stats()
	}
	return Stats{}
}

// Do runs fn with exclusive access to the wrapped allocator, for sequences
// of calls that must not interleave with other goroutines.
func (s *SyncAllocator[A]) Do(fn func(a A)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.a)
}

var _ Allocator = (*SyncAllocator[*PoolAllocator])(nil)
