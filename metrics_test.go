package framealloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBumpStats(t *testing.T) {
	g := mustGlobal(t, 1024)

	s := g.Stats()
	assert.Equal(t, 1024, s.Capacity)
	assert.Equal(t, 0, s.InUse)
	assert.Equal(t, 0.0, s.Utilization)
	assert.Equal(t, 1024, s.Free())

	a := g.Allocate(100)
	g.Allocate(200)
	s = g.Stats()
	assert.Equal(t, 112+208, s.InUse)
	assert.Equal(t, uint64(2), s.Allocations)
	assert.InDelta(t, 320.0/1024, s.Utilization, 1e-9)

	g.Reset()
	g.Allocate(16)
	s = g.Stats()
	assert.Equal(t, 16, s.InUse)
	assert.Equal(t, 320, s.Peak, "peak survives reset")
	assert.Equal(t, uint64(3), s.Allocations)

	// Non-LIFO deallocate is not counted as freed.
	g.Deallocate(a)
	assert.Equal(t, 16, g.Stats().InUse)
}

func TestStatsAfterRelease(t *testing.T) {
	g, err := NewGlobalStackAllocator(1024)
	assert.NoError(t, err)
	g.Allocate(64)
	assert.NoError(t, g.Release())

	assert.Equal(t, Stats{}, g.Stats())
}

func TestUtilizationEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, utilization(0, 0))
	assert.Equal(t, 0.0, utilization(10, 0))
	assert.Equal(t, 0.5, utilization(50, 100))
	assert.Equal(t, 1.0, utilization(100, 100))
}

func TestStatsAdd(t *testing.T) {
	a := newStats(100, 50, 60, 3)
	b := newStats(300, 50, 100, 1)

	sum := a.add(b)
	assert.Equal(t, Stats{
		Capacity:    400,
		InUse:       100,
		Peak:        160,
		Allocations: 4,
		Utilization: 0.25,
	}, sum)
	assert.Equal(t, 300, sum.Free())
}

func BenchmarkStats(b *testing.B) {
	g, err := NewGlobalStackAllocator(1024 * 1024)
	if err != nil {
		b.Fatal(err)
	}
	defer g.Release()
	for i := 0; i < 100; i++ {
		g.Allocate(64)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = g.Stats()
	}
}
