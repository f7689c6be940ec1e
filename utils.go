package voxtrace

import (
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// Epsilon is the smallest distance a ray must travel for a surface crossing to count.
	Epsilon = 0.000005
	// Offset is how far a ray is nudged past a boundary it just crossed so that
	// the next voxel lookup lands on the far side.
	Offset = 0.0001
)

// Clamp x between a and b, assume a <= b
func Clamp[T constraints.Ordered](x, a, b T) T {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}

// FloorDiv returns a/b rounded towards negative infinity. b must be positive.
func FloorDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if (a%b != 0) && (a < 0) {
		q--
	}
	return q
}

// Floor returns the largest integer less than or equal to x.
func Floor(x float64) int {
	return int(math.Floor(x))
}

// Sign returns the sign of x
func Sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	if x > 0 {
		return 1
	}
	return 0
}

// Towards returns the unit direction pointing from a to b.
func Towards(a, b r3.Vec) r3.Vec {
	return r3.Unit(r3.Sub(b, a))
}
