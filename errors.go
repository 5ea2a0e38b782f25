package framealloc

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrPoolExhausted indicates that every slot of a pool is allocated.
	ErrPoolExhausted = errors.New("framealloc: pool exhausted")

	// ErrSizeMismatch indicates a pool request whose size differs from the pool's block size.
	ErrSizeMismatch = errors.New("framealloc: size does not match pool block size")

	// ErrForeignBlock indicates a block that was not produced by the allocator it was returned to.
	ErrForeignBlock = errors.New("framealloc: block not owned by allocator")

	// ErrDoubleFree indicates a block that was already deallocated.
	ErrDoubleFree = errors.New("framealloc: block already deallocated")

	// ErrBadAlignment indicates an alignment that is not a positive power of two.
	ErrBadAlignment = errors.New("framealloc: alignment must be a power of two")

	// ErrBadCapacity indicates a negative capacity or block size.
	ErrBadCapacity = errors.New("framealloc: invalid capacity")

	// ErrStackFull indicates a push onto a stack whose reserved capacity is used up.
	ErrStackFull = errors.New("framealloc: stack capacity exceeded")

	// ErrStackEmpty indicates a pop from an empty stack.
	ErrStackEmpty = errors.New("framealloc: pop from empty stack")

	// ErrIndexOutOfRange indicates an element index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("framealloc: index out of range")

	// ErrReleased indicates use of an allocator after Release.
	ErrReleased = errors.New("framealloc: use after Release()")
)

// MisuseError is the panic value raised when an allocator or container is
// used in violation of its contract. Err is one of the package sentinels.
type MisuseError struct {
	Op     string
	Err    error
	Detail string
}

func (e *MisuseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Detail)
}

// Unwrap returns the sentinel so errors.Is works on recovered panic values.
func (e *MisuseError) Unwrap() error {
	return e.Err
}

// Cause supports github.com/pkg/errors.Cause.
func (e *MisuseError) Cause() error {
	return e.Err
}

func misuse(op string, err error, format string, args ...any) {
	panic(&MisuseError{Op: op, Err: err, Detail: fmt.Sprintf(format, args...)})
}
