package voxtrace

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ray is the value threaded through octree and BVH queries. Each render worker owns its rays;
// neither acceleration structure keeps a reference to one.
type Ray struct {
	// O is the ray origin. Octree marching advances it; BVH queries leave it untouched.
	O r3.Vec
	// D is the ray direction.
	D r3.Vec
	// N is the normal of the last surface crossed or hit.
	N r3.Vec
	// Distance accumulates how far O has been advanced since the ray was created.
	Distance float64
	// T is the current best hit distance measured from O. Queries only accept closer hits.
	T float64
	// TNext is scratch space for candidate distances (AABB.Intersect, AABB.QuickIntersect).
	TNext float64
	// U, V are the surface coordinates of the last hit.
	U, V float64

	CurrentMaterial int
	CurrentData     int
	PrevMaterial    int
	PrevData        int
}

// NewRay returns a ray at origin o with direction d, no hit recorded and air as its medium.
func NewRay(o, d r3.Vec) Ray {
	return Ray{
		O: o,
		D: d,
		T: math.Inf(1),
	}
}

// At returns the point at distance t along the ray.
func (r *Ray) At(t float64) r3.Vec {
	return r3.Add(r.O, r3.Scale(t, r.D))
}

// Advance moves the origin t units along the direction and accumulates Distance.
func (r *Ray) Advance(t float64) {
	r.O = r.At(t)
	r.Distance += t
}

// Voxel returns the voxel the ray is in, nudged by Offset along D so a ray
// sitting exactly on a boundary reports the voxel it is about to enter.
func (r *Ray) Voxel() V3i {
	return V3i{
		Floor(r.O.X + r.D.X*Offset),
		Floor(r.O.Y + r.D.Y*Offset),
		Floor(r.O.Z + r.D.Z*Offset),
	}
}

func (r *Ray) SetNormal(x, y, z float64) {
	r.N = r3.Vec{X: x, Y: y, Z: z}
}

// SetCurrentMaterial replaces the current medium.
func (r *Ray) SetCurrentMaterial(typ, data int) {
	r.CurrentMaterial = typ
	r.CurrentData = data
}

// SetPrevMaterial replaces the previous medium.
func (r *Ray) SetPrevMaterial(typ, data int) {
	r.PrevMaterial = typ
	r.PrevData = data
}

// ResetHit forgets any recorded hit distance.
func (r *Ray) ResetHit() {
	r.T = math.Inf(1)
	r.TNext = math.Inf(1)
}

// ExitBlock advances the ray to where it leaves the unit voxel (bx,by,bz), setting the
// normal of the face it leaves through.
func (r *Ray) ExitBlock(bx, by, bz int) {
	r.exitCube(float64(bx), float64(by), float64(bz), 1)
}

// exitCube advances the ray out of the axis aligned cube with minimum corner (x0,y0,z0)
// and the given side. Only crossings farther than Epsilon are considered.
func (r *Ray) exitCube(x0, y0, z0, side float64) {
	var nx, ny, nz float64
	tNear := math.Inf(1)

	t := (x0 - r.O.X) / r.D.X
	if t > Epsilon {
		tNear = t
		nx = 1
	} else {
		t = (x0 + side - r.O.X) / r.D.X
		if t < tNear && t > Epsilon {
			tNear = t
			nx = -1
		}
	}

	t = (y0 - r.O.Y) / r.D.Y
	if t < tNear && t > Epsilon {
		tNear = t
		nx, ny = 0, 1
	} else {
		t = (y0 + side - r.O.Y) / r.D.Y
		if t < tNear && t > Epsilon {
			tNear = t
			nx, ny = 0, -1
		}
	}

	t = (z0 - r.O.Z) / r.D.Z
	if t < tNear && t > Epsilon {
		tNear = t
		nx, ny, nz = 0, 0, 1
	} else {
		t = (z0 + side - r.O.Z) / r.D.Z
		if t < tNear && t > Epsilon {
			tNear = t
			nx, ny, nz = 0, 0, -1
		}
	}

	r.Advance(tNear)
	r.SetNormal(nx, ny, nz)
}

// ExitCube is ExitBlock for a cube of side 2^level whose minimum corner is (lx,ly,lz)<<level.
func (r *Ray) ExitCube(lx, ly, lz, level int) {
	side := float64(int(1) << level)
	r.exitCube(float64(lx<<level), float64(ly<<level), float64(lz<<level), side)
}
