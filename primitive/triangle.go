package primitive

import (
	"math"

	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"gonum.org/v1/gonum/spatial/r3"
)

const triangleEpsilon = 1e-8

// Triangle with vertices A, B, C. Hits report barycentric UV, with U
// weighting B and V weighting C.
type Triangle struct {
	A, B, C  r3.Vec
	Material int

	e1, e2 r3.Vec
	n      r3.Vec
}

var _ Primitive = (*Triangle)(nil)

func NewTriangle(a, b, c r3.Vec, material int) (*Triangle, error) {
	e1, e2 := r3.Sub(b, a), r3.Sub(c, a)
	nn := r3.Cross(e1, e2)
	if r3.Norm2(nn) == 0 {
		return nil, errors.Wrapf(ErrDegenerate, "triangle %v %v %v has no area", a, b, c)
	}
	return &Triangle{A: a, B: b, C: c, Material: material, e1: e1, e2: e2, n: r3.Unit(nn)}, nil
}

func (s *Triangle) Bounds() voxtrace.AABB {
	return voxtrace.BoundsOf(s.A, s.B, s.C)
}

// Intersect is the Möller-Trumbore test.
func (s *Triangle) Intersect(r *voxtrace.Ray) bool {
	pvec := r3.Cross(r.D, s.e2)
	det := r3.Dot(s.e1, pvec)
	if math.Abs(det) < triangleEpsilon {
		return false
	}
	inv := 1 / det
	tvec := r3.Sub(r.O, s.A)
	u := r3.Dot(tvec, pvec) * inv
	if u < 0 || u > 1 {
		return false
	}
	qvec := r3.Cross(tvec, s.e1)
	v := r3.Dot(r.D, qvec) * inv
	if v < 0 || u+v > 1 {
		return false
	}
	t := r3.Dot(s.e2, qvec) * inv
	if !accept(t, r) {
		return false
	}
	r.T = t
	r.N = facing(s.n, r.D)
	r.U, r.V = u, v
	r.SetCurrentMaterial(s.Material, 0)
	return true
}
