package octree

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTooBig is matched by every *TooBigError. The tree should be migrated to a
	// backend with a larger index space and the operation retried.
	ErrTooBig = errors.New("octree too big for implementation")

	ErrInvalidDepth          = errors.New("invalid octree depth")
	ErrOutOfBounds           = errors.New("coordinate outside octree")
	ErrInvalidType           = errors.New("invalid block type")
	ErrInvalidCube           = errors.New("invalid cube")
	ErrMalformed             = errors.New("malformed octree stream")
	ErrUnknownImplementation = errors.New("unknown octree implementation")
	ErrUnsupportedVersion    = errors.New("unsupported octree file version")
	ErrDigestMismatch        = errors.New("octree file digest mismatch")
)

// TooBigError is the capacity fault raised by the packed backends when a
// mutation would need more slots than the backend can address. The tree is left
// as it was before the failing call.
type TooBigError struct {
	Implementation string
	// Requested is the number of slots the operation needed.
	Requested int64
	// Limit is the maximum number of slots of the backend.
	Limit int64
}

func (e *TooBigError) Error() string {
	return fmt.Sprintf("%s octree needs %d slots, limit is %d", e.Implementation, e.Requested, e.Limit)
}

// Is makes errors.Is(err, ErrTooBig) true for any *TooBigError.
func (e *TooBigError) Is(target error) bool {
	return target == ErrTooBig
}
