// Package voxelize fills octrees from signed distance functions.
//
// Shapes are given in voxel coordinates: the voxel (x,y,z) covers the unit cube
// with minimum corner (x,y,z) and is inside a shape when the distance at its
// centre is not positive.
package voxelize

import (
	"math"

	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrInvalidShape = errors.New("invalid shape")

// SDF is a signed distance function. Evaluate is negative inside the shape.
type SDF interface {
	Evaluate(p r3.Vec) float64
	// Bounds returns a box that completely contains the shape.
	Bounds() r3.Box
}

// MinFunc combines the distances of two shapes in a union.
type MinFunc func(a, b float64) float64

// MaxFunc combines the distances of two shapes in a difference or intersection.
type MaxFunc func(a, b float64) float64

// SmoothMin returns a polynomial smooth minimum that blends shapes closer
// than k.
func SmoothMin(k float64) MinFunc {
	return func(a, b float64) float64 {
		h := voxtrace.Clamp(0.5+0.5*(b-a)/k, 0, 1)
		return b + h*(a-b) - k*h*(1-h)
	}
}

type sphere struct {
	center r3.Vec
	radius float64
}

// Sphere returns a sphere.
func Sphere(center r3.Vec, radius float64) (SDF, error) {
	if radius <= 0 {
		return nil, errors.Wrapf(ErrInvalidShape, "sphere radius %v", radius)
	}
	return &sphere{center: center, radius: radius}, nil
}

func (s *sphere) Evaluate(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.center)) - s.radius
}

func (s *sphere) Bounds() r3.Box {
	return r3.Box(d3.CenteredBox(s.center, d3.Elem(2*s.radius)))
}

type box struct {
	center r3.Vec
	half   r3.Vec // half size less the rounding
	round  float64
}

// Box returns a box of the given size. Edges are rounded with round > 0.
func Box(center, size r3.Vec, round float64) (SDF, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, errors.Wrapf(ErrInvalidShape, "box size %v", size)
	}
	if round < 0 || 2*round > d3.Min(size) {
		return nil, errors.Wrapf(ErrInvalidShape, "box rounding %v", round)
	}
	return &box{
		center: center,
		half:   r3.Sub(r3.Scale(0.5, size), d3.Elem(round)),
		round:  round,
	}, nil
}

func (s *box) Evaluate(p r3.Vec) float64 {
	p = r3.Sub(p, s.center)
	p = r3.Vec{X: math.Abs(p.X), Y: math.Abs(p.Y), Z: math.Abs(p.Z)}
	d := r3.Sub(p, s.half)
	return r3.Norm(d3.MaxElem(d, r3.Vec{})) + math.Min(d3.Max(d), 0) - s.round
}

func (s *box) Bounds() r3.Box {
	size := r3.Scale(2, r3.Add(s.half, d3.Elem(s.round)))
	return r3.Box(d3.CenteredBox(s.center, size))
}

type cylinder struct {
	center r3.Vec
	half   r2.Vec // radius and half height, less the rounding
	round  float64
}

// Cylinder returns an upright cylinder centred at center. Edges are rounded
// with round > 0.
func Cylinder(center r3.Vec, height, radius, round float64) (SDF, error) {
	if height <= 0 || radius <= 0 {
		return nil, errors.Wrapf(ErrInvalidShape, "cylinder height %v radius %v", height, radius)
	}
	if round < 0 || round > radius || 2*round > height {
		return nil, errors.Wrapf(ErrInvalidShape, "cylinder rounding %v", round)
	}
	return &cylinder{
		center: center,
		half:   r2.Vec{X: radius - round, Y: 0.5*height - round},
		round:  round,
	}, nil
}

func (s *cylinder) Evaluate(p r3.Vec) float64 {
	p = r3.Sub(p, s.center)
	q := r2.Vec{X: math.Hypot(p.X, p.Z), Y: math.Abs(p.Y)}
	d := r2.Sub(q, s.half)
	outside := r2.Norm(r2.Vec{X: math.Max(d.X, 0), Y: math.Max(d.Y, 0)})
	return outside + math.Min(math.Max(d.X, d.Y), 0) - s.round
}

func (s *cylinder) Bounds() r3.Box {
	r := s.half.X + s.round
	h := s.half.Y + s.round
	return r3.Box{
		Min: r3.Sub(s.center, r3.Vec{X: r, Y: h, Z: r}),
		Max: r3.Add(s.center, r3.Vec{X: r, Y: h, Z: r}),
	}
}

// UnionSDF is a union whose blending can be changed.
type UnionSDF struct {
	shapes []SDF
	min    MinFunc
	bb     d3.Box
}

// Union returns the union of one or more shapes.
func Union(shapes ...SDF) (*UnionSDF, error) {
	if len(shapes) == 0 {
		return nil, errors.Wrap(ErrInvalidShape, "empty union")
	}
	u := &UnionSDF{shapes: shapes, min: math.Min}
	for i, s := range shapes {
		if s == nil {
			return nil, errors.Wrapf(ErrInvalidShape, "nil shape %d in union", i)
		}
		if i == 0 {
			u.bb = d3.Box(s.Bounds())
		}
		u.bb = u.bb.Extend(d3.Box(s.Bounds()))
	}
	return u, nil
}

// SetMin sets the function combining the distances of the shapes.
func (u *UnionSDF) SetMin(min MinFunc) { u.min = min }

func (u *UnionSDF) Evaluate(p r3.Vec) float64 {
	d := u.shapes[0].Evaluate(p)
	for _, s := range u.shapes[1:] {
		d = u.min(d, s.Evaluate(p))
	}
	return d
}

func (u *UnionSDF) Bounds() r3.Box { return r3.Box(u.bb) }

type difference struct {
	s0, s1 SDF
	max    MaxFunc
}

// Difference returns s0 with s1 carved out of it.
func Difference(s0, s1 SDF) (SDF, error) {
	if s0 == nil || s1 == nil {
		return nil, errors.Wrap(ErrInvalidShape, "nil shape in difference")
	}
	return &difference{s0: s0, s1: s1, max: math.Max}, nil
}

func (s *difference) Evaluate(p r3.Vec) float64 {
	return s.max(s.s0.Evaluate(p), -s.s1.Evaluate(p))
}

func (s *difference) Bounds() r3.Box { return s.s0.Bounds() }

type intersection struct {
	s0, s1 SDF
	bb     r3.Box
}

// Intersection returns the volume shared by s0 and s1.
func Intersection(s0, s1 SDF) (SDF, error) {
	if s0 == nil || s1 == nil {
		return nil, errors.Wrap(ErrInvalidShape, "nil shape in intersection")
	}
	b0, b1 := s0.Bounds(), s1.Bounds()
	bb := r3.Box{Min: d3.MaxElem(b0.Min, b1.Min), Max: d3.MinElem(b0.Max, b1.Max)}
	// Disjoint bounds collapse to an empty box at the lower corner.
	bb.Max = d3.MaxElem(bb.Min, bb.Max)
	return &intersection{s0: s0, s1: s1, bb: bb}, nil
}

func (s *intersection) Evaluate(p r3.Vec) float64 {
	return math.Max(s.s0.Evaluate(p), s.s1.Evaluate(p))
}

func (s *intersection) Bounds() r3.Box { return s.bb }

type shell struct {
	s     SDF
	delta float64
}

// Shell hollows s, leaving a wall of the given thickness centred on its surface.
func Shell(s SDF, thickness float64) (SDF, error) {
	if thickness <= 0 {
		return nil, errors.Wrapf(ErrInvalidShape, "shell thickness %v", thickness)
	}
	return &shell{s: s, delta: 0.5 * thickness}, nil
}

func (s *shell) Evaluate(p r3.Vec) float64 {
	return math.Abs(s.s.Evaluate(p)) - s.delta
}

func (s *shell) Bounds() r3.Box {
	bb := d3.Box(s.s.Bounds())
	return r3.Box(d3.CenteredBox(bb.Center(), r3.Add(bb.Size(), d3.Elem(2*s.delta))))
}

type transformed struct {
	s   SDF
	inv d3.Rigid
	bb  r3.Box
}

// Transform rotates s about the origin and then moves it to position.
// The zero rotation leaves s unrotated.
func Transform(s SDF, position r3.Vec, rotation r3.Rotation) SDF {
	t := d3.NewRigid(position, rotation)
	return &transformed{s: s, inv: t.Inv(), bb: t.ApplyBox(s.Bounds())}
}

func (s *transformed) Evaluate(p r3.Vec) float64 {
	return s.s.Evaluate(s.inv.Apply(p))
}

func (s *transformed) Bounds() r3.Box { return s.bb }
