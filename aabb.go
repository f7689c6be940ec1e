package voxtrace

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// AABB is an axis aligned bounding box with its surface area precomputed.
// Boxes describing partial blocks are given in unit voxel coordinates.
type AABB struct {
	Xmin, Xmax  float64
	Ymin, Ymax  float64
	Zmin, Zmax  float64
	SurfaceArea float64
}

// NewAABB returns the box spanning the given extents.
func NewAABB(xmin, xmax, ymin, ymax, zmin, zmax float64) AABB {
	return AABB{
		Xmin: xmin, Xmax: xmax,
		Ymin: ymin, Ymax: ymax,
		Zmin: zmin, Zmax: zmax,
		SurfaceArea: surfaceArea(xmax-xmin, ymax-ymin, zmax-zmin),
	}
}

// EmptyAABB returns an inverted box that acts as the identity for Expand.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{Xmin: inf, Xmax: -inf, Ymin: inf, Ymax: -inf, Zmin: inf, Zmax: -inf}
}

// BoundsOf returns the smallest box containing all points.
func BoundsOf(points ...r3.Vec) AABB {
	b := EmptyAABB()
	for _, p := range points {
		b.Xmin = math.Min(b.Xmin, p.X)
		b.Xmax = math.Max(b.Xmax, p.X)
		b.Ymin = math.Min(b.Ymin, p.Y)
		b.Ymax = math.Max(b.Ymax, p.Y)
		b.Zmin = math.Min(b.Zmin, p.Z)
		b.Zmax = math.Max(b.Zmax, p.Z)
	}
	return NewAABB(b.Xmin, b.Xmax, b.Ymin, b.Ymax, b.Zmin, b.Zmax)
}

// BoxAABB converts a gonum box.
func BoxAABB(b r3.Box) AABB {
	return NewAABB(b.Min.X, b.Max.X, b.Min.Y, b.Max.Y, b.Min.Z, b.Max.Z)
}

func surfaceArea(x, y, z float64) float64 {
	if x < 0 || y < 0 || z < 0 {
		return 0
	}
	return 2 * (y*z + x*z + x*y)
}

// IsEmpty reports whether the box has no volume and no surface, e.g. EmptyAABB.
func (b AABB) IsEmpty() bool {
	return b.Xmin > b.Xmax || b.Ymin > b.Ymax || b.Zmin > b.Zmax
}

// Box returns the gonum representation of b.
func (b AABB) Box() r3.Box {
	return r3.Box{
		Min: r3.Vec{X: b.Xmin, Y: b.Ymin, Z: b.Zmin},
		Max: r3.Vec{X: b.Xmax, Y: b.Ymax, Z: b.Zmax},
	}
}

// Center returns the box centroid.
func (b AABB) Center() r3.Vec {
	return r3.Vec{
		X: (b.Xmin + b.Xmax) / 2,
		Y: (b.Ymin + b.Ymax) / 2,
		Z: (b.Zmin + b.Zmax) / 2,
	}
}

// Expand returns the union of b and other.
func (b AABB) Expand(other AABB) AABB {
	return NewAABB(
		math.Min(b.Xmin, other.Xmin), math.Max(b.Xmax, other.Xmax),
		math.Min(b.Ymin, other.Ymin), math.Max(b.Ymax, other.Ymax),
		math.Min(b.Zmin, other.Zmin), math.Max(b.Zmax, other.Zmax),
	)
}

// Translate returns b moved by (x,y,z).
func (b AABB) Translate(x, y, z float64) AABB {
	return NewAABB(b.Xmin+x, b.Xmax+x, b.Ymin+y, b.Ymax+y, b.Zmin+z, b.Zmax+z)
}

// RotateY rotates a unit voxel box 90 degrees about the vertical axis through the voxel centre.
func (b AABB) RotateY() AABB {
	return NewAABB(1-b.Zmax, 1-b.Zmin, b.Ymin, b.Ymax, b.Xmin, b.Xmax)
}

// Inside reports whether p lies within the box, boundaries included.
func (b AABB) Inside(p r3.Vec) bool {
	return p.X >= b.Xmin && p.X <= b.Xmax &&
		p.Y >= b.Ymin && p.Y <= b.Ymax &&
		p.Z >= b.Zmin && p.Z <= b.Zmax
}

// Contains reports whether other lies entirely within b.
func (b AABB) Contains(other AABB) bool {
	return other.Xmin >= b.Xmin && other.Xmax <= b.Xmax &&
		other.Ymin >= b.Ymin && other.Ymax <= b.Ymax &&
		other.Zmin >= b.Zmin && other.Zmax <= b.Zmax
}

// Equals compares extents within tol.
func (b AABB) Equals(other AABB, tol float64) bool {
	return math.Abs(b.Xmin-other.Xmin) <= tol && math.Abs(b.Xmax-other.Xmax) <= tol &&
		math.Abs(b.Ymin-other.Ymin) <= tol && math.Abs(b.Ymax-other.Ymax) <= tol &&
		math.Abs(b.Zmin-other.Zmin) <= tol && math.Abs(b.Zmax-other.Zmax) <= tol
}

// Intersect tests the ray against the six faces of a box given in unit voxel
// coordinates relative to the voxel the ray is in. A face hit closer than r.TNext
// (which is reset to r.T first) updates TNext, U, V and N.
func (b AABB) Intersect(r *Ray) bool {
	ix := r.O.X - math.Floor(r.O.X+r.D.X*Offset)
	iy := r.O.Y - math.Floor(r.O.Y+r.D.Y*Offset)
	iz := r.O.Z - math.Floor(r.O.Z+r.D.Z*Offset)
	d := r.D
	hit := false
	r.TNext = r.T

	t := (b.Xmin - ix) / d.X
	if t < r.TNext && t > -Epsilon {
		u := iz + d.Z*t
		v := iy + d.Y*t
		if u >= b.Zmin && u <= b.Zmax && v >= b.Ymin && v <= b.Ymax {
			hit = true
			r.TNext = t
			r.U, r.V = u, v
			r.SetNormal(-1, 0, 0)
		}
	}
	t = (b.Xmax - ix) / d.X
	if t < r.TNext && t > -Epsilon {
		u := iz + d.Z*t
		v := iy + d.Y*t
		if u >= b.Zmin && u <= b.Zmax && v >= b.Ymin && v <= b.Ymax {
			hit = true
			r.TNext = t
			r.U, r.V = 1-u, v
			r.SetNormal(1, 0, 0)
		}
	}
	t = (b.Ymin - iy) / d.Y
	if t < r.TNext && t > -Epsilon {
		u := ix + d.X*t
		v := iz + d.Z*t
		if u >= b.Xmin && u <= b.Xmax && v >= b.Zmin && v <= b.Zmax {
			hit = true
			r.TNext = t
			r.U, r.V = u, v
			r.SetNormal(0, -1, 0)
		}
	}
	t = (b.Ymax - iy) / d.Y
	if t < r.TNext && t > -Epsilon {
		u := ix + d.X*t
		v := iz + d.Z*t
		if u >= b.Xmin && u <= b.Xmax && v >= b.Zmin && v <= b.Zmax {
			hit = true
			r.TNext = t
			r.U, r.V = u, v
			r.SetNormal(0, 1, 0)
		}
	}
	t = (b.Zmin - iz) / d.Z
	if t < r.TNext && t > -Epsilon {
		u := ix + d.X*t
		v := iy + d.Y*t
		if u >= b.Xmin && u <= b.Xmax && v >= b.Ymin && v <= b.Ymax {
			hit = true
			r.TNext = t
			r.U, r.V = 1-u, v
			r.SetNormal(0, 0, -1)
		}
	}
	t = (b.Zmax - iz) / d.Z
	if t < r.TNext && t > -Epsilon {
		u := ix + d.X*t
		v := iy + d.Y*t
		if u >= b.Xmin && u <= b.Xmax && v >= b.Ymin && v <= b.Ymax {
			hit = true
			r.TNext = t
			r.U, r.V = u, v
			r.SetNormal(0, 0, 1)
		}
	}
	return hit
}

// QuickIntersect is a slab test in world coordinates. Axes the ray runs parallel to
// are skipped explicitly instead of relying on infinite slab distances. On success
// r.TNext holds the entry distance, which is never negative and always below r.T.
func (b AABB) QuickIntersect(r *Ray) bool {
	tNear := math.Inf(-1)
	tFar := math.Inf(1)
	mins := [3]float64{b.Xmin, b.Ymin, b.Zmin}
	maxs := [3]float64{b.Xmax, b.Ymax, b.Zmax}
	o := [3]float64{r.O.X, r.O.Y, r.O.Z}
	d := [3]float64{r.D.X, r.D.Y, r.D.Z}
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < mins[i] || o[i] > maxs[i] {
				return false
			}
			continue
		}
		t1 := (mins[i] - o[i]) / d[i]
		t2 := (maxs[i] - o[i]) / d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tNear = math.Max(tNear, t1)
		tFar = math.Min(tFar, t2)
	}
	if tNear < tFar+Epsilon && tNear >= 0 && tNear < r.T {
		r.TNext = tNear
		return true
	}
	return false
}

// HitTest reports whether the ray line crosses the box ahead of the origin,
// including when the origin is inside. The ray is not modified.
func (b AABB) HitTest(r *Ray) bool {
	tNear, tFar := b.slab(r.O, r.D)
	return tNear < tFar+Epsilon && tFar > 0
}

// Entry returns the distance along the ray where it enters the box and true,
// or false when the box lies behind or beside the ray. The distance is negative
// when the origin is inside the box.
func (b AABB) Entry(o, d r3.Vec) (float64, bool) {
	tNear, tFar := b.slab(o, d)
	if tNear < tFar+Epsilon && tFar > 0 {
		return tNear, true
	}
	return 0, false
}

func (b AABB) slab(o, d r3.Vec) (tNear, tFar float64) {
	tNear = math.Inf(-1)
	tFar = math.Inf(1)
	if d.X != 0 {
		t1 := (b.Xmin - o.X) / d.X
		t2 := (b.Xmax - o.X) / d.X
		tNear = math.Max(tNear, math.Min(t1, t2))
		tFar = math.Min(tFar, math.Max(t1, t2))
	} else if o.X < b.Xmin || o.X > b.Xmax {
		return math.Inf(1), math.Inf(-1)
	}
	if d.Y != 0 {
		t1 := (b.Ymin - o.Y) / d.Y
		t2 := (b.Ymax - o.Y) / d.Y
		tNear = math.Max(tNear, math.Min(t1, t2))
		tFar = math.Min(tFar, math.Max(t1, t2))
	} else if o.Y < b.Ymin || o.Y > b.Ymax {
		return math.Inf(1), math.Inf(-1)
	}
	if d.Z != 0 {
		t1 := (b.Zmin - o.Z) / d.Z
		t2 := (b.Zmax - o.Z) / d.Z
		tNear = math.Max(tNear, math.Min(t1, t2))
		tFar = math.Min(tFar, math.Max(t1, t2))
	} else if o.Z < b.Zmin || o.Z > b.Zmax {
		return math.Inf(1), math.Inf(-1)
	}
	return tNear, tFar
}

// Sample returns a uniformly random point on a uniformly random face of the box.
func (b AABB) Sample(rnd *rand.Rand) r3.Vec {
	face := rnd.Intn(6)
	perp := face % 3
	var p [3]float64
	for i := range p {
		if i == perp {
			if face > 2 {
				p[i] = 1
			}
			continue
		}
		p[i] = rnd.Float64()
	}
	return r3.Vec{
		X: b.Xmin + p[0]*(b.Xmax-b.Xmin),
		Y: b.Ymin + p[1]*(b.Ymax-b.Ymin),
		Z: b.Zmin + p[2]*(b.Zmax-b.Zmin),
	}
}
