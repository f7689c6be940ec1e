package primitive

import (
	"math"

	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quad is the parallelogram with corner Q and edges U and V.
type Quad struct {
	Q, U, V  r3.Vec
	Material int

	n r3.Vec  // unit normal, U×V direction
	d float64 // plane offset, n·p = d
	w r3.Vec  // (U×V)/|U×V|², projects hits onto U,V
}

var _ Primitive = (*Quad)(nil)

// NewQuad returns the quad spanned by u and v from corner q.
func NewQuad(q, u, v r3.Vec, material int) (*Quad, error) {
	nn := r3.Cross(u, v)
	l2 := r3.Norm2(nn)
	if l2 == 0 {
		return nil, errors.Wrapf(ErrDegenerate, "quad edges %v and %v are parallel", u, v)
	}
	n := r3.Unit(nn)
	return &Quad{
		Q:        q,
		U:        u,
		V:        v,
		Material: material,
		n:        n,
		d:        r3.Dot(n, q),
		w:        r3.Scale(1/l2, nn),
	}, nil
}

func (s *Quad) Bounds() voxtrace.AABB {
	return voxtrace.BoundsOf(s.Q, r3.Add(s.Q, s.U), r3.Add(s.Q, s.V), r3.Add(r3.Add(s.Q, s.U), s.V))
}

func (s *Quad) Intersect(r *voxtrace.Ray) bool {
	denom := r3.Dot(s.n, r.D)
	if math.Abs(denom) < 1e-8 {
		return false
	}
	t := (s.d - r3.Dot(s.n, r.O)) / denom
	if !accept(t, r) {
		return false
	}
	p := r3.Sub(r.At(t), s.Q)
	alpha := r3.Dot(s.w, r3.Cross(p, s.V))
	beta := r3.Dot(s.w, r3.Cross(s.U, p))
	if alpha < 0 || alpha > 1 || beta < 0 || beta > 1 {
		return false
	}
	r.T = t
	r.N = facing(s.n, r.D)
	r.U, r.V = alpha, beta
	r.SetCurrentMaterial(s.Material, 0)
	return true
}
