// Package primitive implements the entity geometry indexed by bvh: quads,
// triangles, spheres and axis aligned boxes.
//
// All primitives follow the same hit contract. A hit at distance t is accepted
// only when voxtrace.Epsilon < t < r.T, in which case r.T, r.N, r.U, r.V and
// r.CurrentMaterial are updated. r.N always faces against the ray direction.
// The ray origin is never moved.
package primitive

import (
	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"gonum.org/v1/gonum/spatial/r3"
)

// Primitive is a piece of geometry that can be bounded and intersected.
type Primitive interface {
	Bounds() voxtrace.AABB
	Intersect(r *voxtrace.Ray) bool
}

var ErrDegenerate = errors.New("degenerate primitive")

// Bounds returns the union of the bounds of prims.
// An empty slice gives voxtrace.EmptyAABB.
func Bounds(prims []Primitive) voxtrace.AABB {
	b := voxtrace.EmptyAABB()
	for _, p := range prims {
		b = b.Expand(p.Bounds())
	}
	return b
}

// ClosestBruteForce intersects r against every primitive, keeping the closest hit.
func ClosestBruteForce(prims []Primitive, r *voxtrace.Ray) bool {
	hit := false
	for _, p := range prims {
		hit = p.Intersect(r) || hit
	}
	return hit
}

// AnyBruteForce returns true on the first primitive r hits.
func AnyBruteForce(prims []Primitive, r *voxtrace.Ray) bool {
	for _, p := range prims {
		if p.Intersect(r) {
			return true
		}
	}
	return false
}

// facing flips n so that it opposes d.
func facing(n, d r3.Vec) r3.Vec {
	if r3.Dot(n, d) > 0 {
		return r3.Scale(-1, n)
	}
	return n
}

func accept(t float64, r *voxtrace.Ray) bool {
	return t > voxtrace.Epsilon && t < r.T
}
