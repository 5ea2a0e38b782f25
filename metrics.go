package framealloc

// Stats is a snapshot of an allocator's usage.
type Stats struct {
	Capacity    int     // Bytes in the backing region
	InUse       int     // Bytes currently handed out, including alignment padding
	Peak        int     // High-water mark of InUse since construction
	Allocations uint64  // Successful Allocate calls since construction
	Utilization float64 // Ratio of InUse to Capacity (0.0-1.0)
}

// StatsReporter is implemented by every allocator in this package.
type StatsReporter interface {
	Stats() Stats
}

func newStats(capacity, inUse, peak int, allocs uint64) Stats {
	return Stats{
		Capacity:    capacity,
		InUse:       inUse,
		Peak:        peak,
		Allocations: allocs,
		Utilization: utilization(inUse, capacity),
	}
}

// add combines two snapshots, as for a fallback chain.
func (s Stats) add(o Stats) Stats {
	return newStats(s.Capacity+o.Capacity, s.InUse+o.InUse, s.Peak+o.Peak, s.Allocations+o.Allocations)
}

// Free returns the number of bytes not in use.
func (s Stats) Free() int {
	return s.Capacity - s.InUse
}

// utilization returns inUse/capacity, or 0 for an empty region.
func utilization(inUse, capacity int) float64 {
	if capacity == 0 {
		return 0
	}
	return float64(inUse) / float64(capacity)
}
