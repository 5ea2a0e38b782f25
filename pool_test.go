package framealloc

import (
	"math/rand/v2"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocateAllThenReuse(t *testing.T) {
	p := mustPool(t, 16, 4)

	blocks := make([]Block, 4)
	for i := range blocks {
		blocks[i] = p.Allocate(16)
		require.False(t, blocks[i].IsNull(), "allocation %d", i)
		assert.Equal(t, 16, blocks[i].Size)
		assert.True(t, p.Owns(blocks[i]))
	}
	assert.True(t, p.Allocate(16).IsNull(), "fifth allocation must fail")
	assert.Equal(t, 0, p.Free())

	p.Deallocate(blocks[2])
	again := p.Allocate(16)
	assert.Equal(t, blocks[2].Ptr, again.Ptr)
	assert.Equal(t, 4, p.Len())
}

func TestPoolBlocksAreDistinctAndAligned(t *testing.T) {
	p := mustPool(t, 24, 8, WithAlignment(8))

	seen := map[uintptr]bool{}
	for i := 0; i < 8; i++ {
		b := p.Allocate(24)
		require.False(t, b.IsNull())
		assert.Zero(t, b.addr()%8)
		assert.False(t, seen[b.addr()], "slot handed out twice")
		seen[b.addr()] = true
	}
}

func TestPoolFreeListIsLIFO(t *testing.T) {
	p := mustPool(t, 32, 4)

	a := p.Allocate(32)
	b := p.Allocate(32)
	p.Deallocate(a)
	p.Deallocate(b)

	assert.Equal(t, b.Ptr, p.Allocate(32).Ptr)
	assert.Equal(t, a.Ptr, p.Allocate(32).Ptr)
}

func TestNewPoolAllocatorInvalid(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		capacity int
		opts     []Option
		wantErr  error
	}{
		{"zero size", 0, 4, nil, ErrBadCapacity},
		{"negative size", -8, 4, nil, ErrBadCapacity},
		{"negative capacity", 16, -1, nil, ErrBadCapacity},
		{"bad alignment", 16, 4, []Option{WithAlignment(12)}, ErrBadAlignment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPoolAllocator(tt.size, tt.capacity, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPoolZeroCapacity(t *testing.T) {
	p := mustPool(t, 16, 0)

	assert.True(t, p.Allocate(16).IsNull())
	assert.Equal(t, 0, p.Cap())
	assert.False(t, p.Owns(Block{}))
	_, err := p.TryAllocate(16)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestPoolSizeMismatch(t *testing.T) {
	p := mustPool(t, 16, 4)

	_, err := p.TryAllocate(8)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, 4, p.Free())

	requireMisuse(t, ErrSizeMismatch, func() { p.Allocate(17) })
}

func TestPoolDoubleFree(t *testing.T) {
	p := mustPool(t, 16, 4)
	b := p.Allocate(16)

	require.NoError(t, p.TryDeallocate(b))
	assert.ErrorIs(t, p.TryDeallocate(b), ErrDoubleFree)
	assert.Equal(t, 4, p.Free(), "double free must not corrupt the free list")

	requireMisuse(t, ErrDoubleFree, func() { p.Deallocate(b) })

	// Every slot is still handed out exactly once.
	seen := map[unsafe.Pointer]bool{}
	for i := 0; i < 4; i++ {
		nb := p.Allocate(16)
		require.False(t, nb.IsNull())
		require.False(t, seen[nb.Ptr])
		seen[nb.Ptr] = true
	}
	assert.True(t, p.Allocate(16).IsNull())
}

func TestPoolForeignBlock(t *testing.T) {
	p := mustPool(t, 16, 4)
	other := mustPool(t, 16, 4)

	foreign := other.Allocate(16)
	assert.False(t, p.Owns(foreign))
	assert.ErrorIs(t, p.TryDeallocate(foreign), ErrForeignBlock)
	requireMisuse(t, ErrForeignBlock, func() { p.Deallocate(foreign) })
	requireMisuse(t, ErrForeignBlock, func() { p.Deallocate(Block{}) })

	b := p.Allocate(16)
	inside := Block{Ptr: unsafe.Add(b.Ptr, 8), Size: 16}
	assert.False(t, p.Owns(inside), "pointer inside a slot is not a slot boundary")
	assert.ErrorIs(t, p.TryDeallocate(inside), ErrForeignBlock)
}

func TestPoolOwnsCoversWholeExtent(t *testing.T) {
	// 4 slots of stride 24 span 96 bytes. The last slot starts at byte 72,
	// beyond the slot count, and must still be owned.
	p := mustPool(t, 24, 4, WithAlignment(8))

	var last Block
	for i := 0; i < 4; i++ {
		last = p.Allocate(24)
	}
	idx, ok := p.Index(last)
	require.True(t, ok)
	assert.Equal(t, 3, idx)
	assert.True(t, p.Owns(last))

	first := p.Slot(0)
	past := Block{Ptr: unsafe.Add(first.Ptr, 96), Size: 24}
	assert.False(t, p.Owns(past))
}

func TestPoolIndexAndSlot(t *testing.T) {
	p := mustPool(t, 16, 8)

	for i := 0; i < 8; i++ {
		b := p.Allocate(16)
		idx, ok := p.Index(b)
		require.True(t, ok)
		assert.Equal(t, i, idx, "fresh pool hands out slots lowest index first")
		assert.Equal(t, b, p.Slot(idx))
		assert.True(t, p.IsAllocated(idx))
	}

	p.Deallocate(p.Slot(5))
	assert.False(t, p.IsAllocated(5))
	assert.False(t, p.IsAllocated(-1))
	assert.False(t, p.IsAllocated(8))

	requireMisuse(t, ErrIndexOutOfRange, func() { p.Slot(8) })
	requireMisuse(t, ErrIndexOutOfRange, func() { p.Slot(-1) })
}

func TestPoolDeallocateAll(t *testing.T) {
	p := mustPool(t, 16, 4)
	first := p.Allocate(16)
	for i := 0; i < 3; i++ {
		p.Allocate(16)
	}
	require.Equal(t, 0, p.Free())

	p.DeallocateAll()
	assert.Equal(t, 4, p.Free())
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, first.Ptr, p.Allocate(16).Ptr)
}

func TestPoolStats(t *testing.T) {
	p := mustPool(t, 10, 4, WithAlignment(16))

	p.Allocate(10)
	b := p.Allocate(10)
	p.Deallocate(b)

	s := p.Stats()
	assert.Equal(t, 64, s.Capacity)
	assert.Equal(t, 16, s.InUse)
	assert.Equal(t, 32, s.Peak)
	assert.Equal(t, uint64(2), s.Allocations)
	assert.Equal(t, 0.25, s.Utilization)
	assert.Equal(t, 10, p.BlockSize())
}

func TestPoolRandomOperationsKeepInvariants(t *testing.T) {
	const capacity = 32
	p := mustPool(t, 48, capacity)
	rng := rand.New(rand.NewPCG(7, 11))

	live := map[unsafe.Pointer]Block{}
	var order []Block
	for step := 0; step < 5000; step++ {
		if rng.IntN(2) == 0 || len(order) == 0 {
			b := p.Allocate(48)
			if len(order) == capacity {
				require.True(t, b.IsNull(), "step %d: full pool handed out a block", step)
				continue
			}
			require.False(t, b.IsNull(), "step %d", step)
			_, dup := live[b.Ptr]
			require.False(t, dup, "step %d: live slot handed out again", step)
			live[b.Ptr] = b
			order = append(order, b)
		} else {
			i := rng.IntN(len(order))
			b := order[i]
			order[i] = order[len(order)-1]
			order = order[:len(order)-1]
			delete(live, b.Ptr)
			require.NoError(t, p.TryDeallocate(b), "step %d", step)
		}
		require.Equal(t, len(order), p.Len())
		require.Equal(t, capacity, p.Len()+p.Free())
	}
}

func TestPoolForType(t *testing.T) {
	type particle struct {
		X, Y, Z float64
		Life    int32
	}

	p, err := PoolFor[particle](16)
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, int(unsafe.Sizeof(particle{})), p.BlockSize())

	ptrs := make([]*particle, 0, 16)
	for i := 0; i < 16; i++ {
		x := New[particle](p)
		require.NotNil(t, x)
		assert.Equal(t, particle{}, *x)
		x.Life = int32(i)
		ptrs = append(ptrs, x)
	}
	assert.Nil(t, New[particle](p))

	for i, x := range ptrs {
		assert.Equal(t, int32(i), x.Life)
		Delete(p, x)
	}
	assert.Equal(t, 16, p.Free())
}

func TestPoolWithMmapRegion(t *testing.T) {
	p := mustPool(t, 64, 128, WithRegion(MmapRegion))

	b := p.Allocate(64)
	require.False(t, b.IsNull())
	copy(b.Bytes(), "frame")
	assert.Equal(t, "frame", string(b.Bytes()[:5]))
	p.Deallocate(b)
}

func TestPoolRelease(t *testing.T) {
	p, err := NewPoolAllocator(16, 4)
	require.NoError(t, err)
	b := p.Allocate(16)

	require.NoError(t, p.Release())
	require.NoError(t, p.Release())
	assert.False(t, p.Owns(b))
	assert.Equal(t, 0, p.Cap())
	assert.True(t, p.Allocate(16).IsNull())
}

func TestPoolForKeepsTypeAlignment(t *testing.T) {
	// An odd base address from the source must not leak into the slots.
	oddRegion := func(size int) ([]byte, func() error, error) {
		buf := make([]byte, size+1)
		return buf[1:], func() error { return nil }, nil
	}

	p, err := PoolFor[int64](8, WithAlignment(1), WithRegion(oddRegion))
	require.NoError(t, err)
	defer p.Release()

	for i := 0; i < 8; i++ {
		b := p.Allocate(8)
		require.False(t, b.IsNull())
		assert.Zero(t, b.addr()%unsafe.Alignof(int64(0)), "slot %d", i)
	}

	_, err = PoolFor[int64](8, WithAlignment(3))
	assert.ErrorIs(t, err, ErrBadAlignment)
}
