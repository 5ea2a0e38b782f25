package framealloc

import (
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapRegion(t *testing.T) {
	buf, release, err := HeapRegion(128)
	require.NoError(t, err)
	assert.Len(t, buf, 128)
	assert.NoError(t, release())

	_, _, err = HeapRegion(-1)
	assert.ErrorIs(t, err, ErrBadCapacity)
}

func TestMmapRegion(t *testing.T) {
	buf, release, err := MmapRegion(8192)
	require.NoError(t, err)
	require.Len(t, buf, 8192)

	buf[0], buf[8191] = 1, 2
	assert.Equal(t, byte(2), buf[8191])

	require.NoError(t, release())
	require.NoError(t, release(), "second release is a no-op")

	_, _, err = MmapRegion(-5)
	assert.ErrorIs(t, err, ErrBadCapacity)
}

func TestAcquireAligned(t *testing.T) {
	for _, align := range []int{1, 8, 16, 64, 4096} {
		buf, release, err := acquireAligned(HeapRegion, 100, align)
		require.NoError(t, err)
		assert.Len(t, buf, 100)
		assert.Equal(t, 100, cap(buf))
		assert.Zero(t, uintptr(unsafe.Pointer(&buf[0]))%uintptr(align), "align %d", align)
		assert.NoError(t, release())
	}

	buf, release, err := acquireAligned(HeapRegion, 0, 16)
	require.NoError(t, err)
	assert.Empty(t, buf)
	assert.NoError(t, release())
}

func TestAcquireAlignedSourceError(t *testing.T) {
	boom := errors.New("no memory today")
	failing := func(int) ([]byte, func() error, error) { return nil, nil, boom }

	_, _, err := acquireAligned(failing, 64, 16)
	assert.ErrorIs(t, err, boom)

	_, err = NewGlobalStackAllocator(64, WithRegion(failing))
	assert.ErrorIs(t, err, boom)

	_, err = NewPoolAllocator(16, 4, WithRegion(failing))
	assert.ErrorIs(t, err, boom)

	_, err = NewStack[int](4, WithRegion(failing))
	assert.ErrorIs(t, err, boom)
}

func TestCustomRegionReleaseError(t *testing.T) {
	boom := errors.New("unmap failed")
	released := 0
	src := func(size int) ([]byte, func() error, error) {
		return make([]byte, size), func() error { released++; return boom }, nil
	}

	g, err := NewGlobalStackAllocator(64, WithRegion(src))
	require.NoError(t, err)
	assert.ErrorIs(t, g.Release(), boom)
	assert.NoError(t, g.Release())
	assert.Equal(t, 1, released)
}
