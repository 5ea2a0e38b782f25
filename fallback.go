package framealloc

// FallbackAllocator tries Primary first and falls back to Fallback when the
// primary returns the null block. Both sub-allocators are plain fields, so
// calls on the fast path go straight to the concrete Primary type.
//
// Deallocate routes by ownership: blocks Primary owns go back to Primary,
// everything else to Fallback. Returning a block that neither produced is
// undefined.
type FallbackAllocator[P, F Allocator] struct {
	Primary  P
	Fallback F
}

// NewFallbackAllocator composes primary and fallback.
func NewFallbackAllocator[P, F Allocator](primary P, fallback F) *FallbackAllocator[P, F] {
	return &FallbackAllocator[P, F]{Primary: primary, Fallback: fallback}
}

// Allocate returns a block from Primary, or from Fallback when Primary is
// out of space. The null block means both are exhausted.
func (a *FallbackAllocator[P, F]) Allocate(n int) Block {
	if b := a.Primary.Allocate(n); !b.IsNull() {
		return b
	}
	return a.Fallback.Allocate(n)
}

// Deallocate returns b to whichever sub-allocator owns it.
func (a *FallbackAllocator[P, F]) Deallocate(b Block) {
	if a.Primary.Owns(b) {
		a.Primary.Deallocate(b)
		return
	}
	a.Fallback.Deallocate(b)
}

// Owns reports whether either sub-allocator owns b.
func (a *FallbackAllocator[P, F]) Owns(b Block) bool {
	return a.Primary.Owns(b) || a.Fallback.Owns(b)
}

// DeallocateAll resets every sub-allocator that supports bulk reset.
func (a *FallbackAllocator[P, F]) DeallocateAll() {
	if r, ok := any(a.Primary).(Resetter); ok {
		r.DeallocateAll()
	}
	if r, ok := any(a.Fallback).(Resetter); ok {
		r.DeallocateAll()
	}
}

// Stats sums the statistics of sub-allocators that report them.
func (a *FallbackAllocator[P, F]) Stats() Stats {
	var s Stats
	if p, ok := any(a.Primary).(StatsReporter); ok {
		s = s.add(p.Stats())
	}
	if f, ok := any(a.Fallback).(StatsReporter); ok {
		s = s.add(f.Stats())
	}
	return s
}

var (
	_ Allocator = (*FallbackAllocator[*StackAllocator, *GlobalStackAllocator])(nil)
	_ Resetter  = (*FallbackAllocator[*StackAllocator, *GlobalStackAllocator])(nil)
)
