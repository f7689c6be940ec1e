package primitive

import (
	"math"

	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"gonum.org/v1/gonum/spatial/r3"
)

type Sphere struct {
	Center   r3.Vec
	Radius   float64
	Material int
}

var _ Primitive = (*Sphere)(nil)

func NewSphere(center r3.Vec, radius float64, material int) (*Sphere, error) {
	if !(radius > 0) {
		return nil, errors.Wrapf(ErrDegenerate, "sphere radius %v", radius)
	}
	return &Sphere{Center: center, Radius: radius, Material: material}, nil
}

func (s *Sphere) Bounds() voxtrace.AABB {
	r := s.Radius
	c := s.Center
	return voxtrace.NewAABB(c.X-r, c.X+r, c.Y-r, c.Y+r, c.Z-r, c.Z+r)
}

// Intersect takes the nearest root beyond voxtrace.Epsilon, so rays starting
// inside the sphere hit its far side.
func (s *Sphere) Intersect(r *voxtrace.Ray) bool {
	oc := r3.Sub(r.O, s.Center)
	a := r3.Norm2(r.D)
	halfB := r3.Dot(oc, r.D)
	c := r3.Norm2(oc) - s.Radius*s.Radius
	disc := halfB*halfB - a*c
	if disc < 0 {
		return false
	}
	sq := math.Sqrt(disc)
	t := (-halfB - sq) / a
	if !accept(t, r) {
		t = (-halfB + sq) / a
		if !accept(t, r) {
			return false
		}
	}
	outward := r3.Scale(1/s.Radius, r3.Sub(r.At(t), s.Center))
	r.T = t
	r.N = facing(outward, r.D)
	r.U, r.V = sphereUV(outward)
	r.SetCurrentMaterial(s.Material, 0)
	return true
}

// sphereUV maps a unit vector to longitude U and latitude V, both in [0,1].
func sphereUV(n r3.Vec) (u, v float64) {
	theta := math.Acos(voxtrace.Clamp(-n.Y, -1, 1))
	phi := math.Atan2(-n.Z, n.X) + math.Pi
	return phi / (2 * math.Pi), theta / math.Pi
}
