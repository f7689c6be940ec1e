package d3

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// d3.Box is a 3d bounding box.
type Box r3.Box

// CenteredBox creates a Box with a given center and size.
// Negative components of size will be interpreted as zero.
func CenteredBox(center, size r3.Vec) Box {
	size = MaxElem(size, r3.Vec{}) // set negative values to zero.
	half := r3.Scale(0.5, size)
	return Box{Min: r3.Sub(center, half), Max: r3.Add(center, half)}
}

// Extend returns a box enclosing two 3d boxes.
func (a Box) Extend(b Box) Box {
	return Box{
		Min: MinElem(a.Min, b.Min),
		Max: MaxElem(a.Max, b.Max),
	}
}

// Include enlarges a 3d box to include a point.
func (a Box) Include(v r3.Vec) Box {
	return Box{
		Min: MinElem(a.Min, v),
		Max: MaxElem(a.Max, v),
	}
}

// Size returns the size of a 3d box.
func (a Box) Size() r3.Vec {
	return r3.Sub(a.Max, a.Min)
}

// Center returns the center of a 3d box.
func (a Box) Center() r3.Vec {
	return r3.Add(a.Min, r3.Scale(0.5, a.Size()))
}

// Random returns a random point within a bounding box.
func (a Box) Random(rng *rand.Rand) r3.Vec {
	return r3.Vec{
		X: randomRange(rng, a.Min.X, a.Max.X),
		Y: randomRange(rng, a.Min.Y, a.Max.Y),
		Z: randomRange(rng, a.Min.Z, a.Max.Z),
	}
}

// RandomSet returns a set of random points from within a bounding box.
func (a Box) RandomSet(rng *rand.Rand, n int) []r3.Vec {
	s := make([]r3.Vec, n)
	for i := range s {
		s[i] = a.Random(rng)
	}
	return s
}

// RandomDirection returns a uniformly distributed unit vector.
func RandomDirection(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: 2*rng.Float64() - 1, Y: 2*rng.Float64() - 1, Z: 2*rng.Float64() - 1}
		n2 := r3.Norm2(v)
		if n2 > 1e-6 && n2 <= 1 {
			return r3.Unit(v)
		}
	}
}

// randomRange returns a random float64 [a,b)
func randomRange(rng *rand.Rand, a, b float64) float64 {
	return a + (b-a)*rng.Float64()
}
