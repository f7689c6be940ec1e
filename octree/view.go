package octree

import (
	"math"

	"github.com/soypat/voxtrace"
	"gonum.org/v1/gonum/spatial/r3"
)

// View is a read-only handle on an octree backend. Any number of goroutines may
// trace rays through a View as long as nothing mutates the octree meanwhile.
type View struct {
	impl  Implementation
	depth int
}

// NewView returns a view over impl.
func NewView(impl Implementation) View {
	return View{impl: impl, depth: impl.Depth()}
}

func (v View) Depth() int { return v.depth }

// Size returns the side of the octree cube.
func (v View) Size() int { return 1 << v.depth }

// Get returns the leaf at (x,y,z), which must be inside the cube.
func (v View) Get(x, y, z int) Node { return v.impl.Get(x, y, z) }

// GetWithLevel returns the leaf at (x,y,z) and its level.
func (v View) GetWithLevel(x, y, z int) (Node, int) { return v.impl.GetWithLevel(x, y, z) }

// Visit calls fn for every leaf.
func (v View) Visit(fn VisitFunc) { v.impl.Visit(fn) }

// Bounds returns the octree cube.
func (v View) Bounds() voxtrace.AABB {
	s := float64(v.Size())
	return voxtrace.NewAABB(0, s, 0, s, 0, s)
}

// IsInside reports whether p lies inside the octree cube.
func (v View) IsInside(p r3.Vec) bool {
	return voxtrace.VoxelOf(p).InCube(v.depth)
}

// Intersect marches the ray to the next medium change. Rays currently in water
// look for the water surface, every other ray for the next block.
func (v View) Intersect(r *voxtrace.Ray, palette voxtrace.Palette) bool {
	if palette.Get(r.CurrentMaterial).Water() {
		return v.ExitWater(r, palette)
	}
	return v.EnterBlock(r, palette)
}

// EnterBlock advances the ray leaf by leaf until it enters a block of a different
// material than the one it is in. On a hit the ray sits on the block surface with
// N set, CurrentMaterial is the block and PrevMaterial the medium the ray came from.
// Distance accumulates the length travelled. It returns false if the ray leaves
// the octree first.
func (v View) EnterBlock(r *voxtrace.Ray, palette voxtrace.Palette) bool {
	if !v.IsInside(r.O) && !v.enterOctree(r) {
		return false
	}
	for {
		vox := r.Voxel()
		if !vox.InCube(v.depth) {
			return false
		}
		x, y, z := vox[0], vox[1], vox[2]
		leaf, level := v.impl.GetWithLevel(x, y, z)

		prev := palette.Get(r.CurrentMaterial)
		r.SetPrevMaterial(r.CurrentMaterial, r.CurrentData)
		r.SetCurrentMaterial(leaf.Type, leaf.Data)
		current := palette.Get(leaf.Type)

		if current.LocalIntersect() {
			if current.Intersect(r) {
				if r.PrevMaterial != r.CurrentMaterial {
					return true
				}
				r.O = r.At(voxtrace.Offset)
				continue
			}
			r.SetCurrentMaterial(0, 0)
			r.ExitBlock(x, y, z)
			continue
		} else if !current.SameMaterial(prev) && !current.Air() {
			return true
		}
		r.ExitCube(x>>level, y>>level, z>>level, level)
	}
}

// ExitWater advances a ray travelling through water until it leaves the water.
// A partial water block is left through its surface, which sets the current
// material to air. Reaching any other block returns true with the ray on that
// block; a block needing local intersection that the ray misses counts as air.
// It returns false if the ray leaves the octree.
func (v View) ExitWater(r *voxtrace.Ray, palette voxtrace.Palette) bool {
	if !v.IsInside(r.O) && !v.enterOctree(r) {
		return false
	}
	for {
		vox := r.Voxel()
		if !vox.InCube(v.depth) {
			return false
		}
		x, y, z := vox[0], vox[1], vox[2]
		leaf, level := v.impl.GetWithLevel(x, y, z)

		r.SetPrevMaterial(r.CurrentMaterial, r.CurrentData)
		r.SetCurrentMaterial(leaf.Type, leaf.Data)
		current := palette.Get(leaf.Type)

		if !current.Water() {
			if current.LocalIntersect() && !current.Intersect(r) {
				r.SetCurrentMaterial(0, 0)
			}
			return true
		}
		if current.LocalIntersect() {
			if current.Intersect(r) {
				r.SetCurrentMaterial(0, 0)
				return true
			}
			r.ExitBlock(x, y, z)
			continue
		}
		r.ExitCube(x>>level, y>>level, z>>level, level)
	}
}

// enterOctree moves a ray starting outside the cube onto the cube face it enters
// through. It returns false when the ray misses the cube.
func (v View) enterOctree(r *voxtrace.Ray) bool {
	size := float64(v.Size())
	o, d := [3]float64{r.O.X, r.O.Y, r.O.Z}, [3]float64{r.D.X, r.D.Y, r.D.Z}
	tNear, tFar := math.Inf(-1), math.Inf(1)
	axis := -1
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < 0 || o[i] > size {
				return false
			}
			continue
		}
		t1 := -o[i] / d[i]
		t2 := (size - o[i]) / d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tNear {
			tNear = t1
			axis = i
		}
		tFar = math.Min(tFar, t2)
	}
	if axis < 0 || tNear > tFar || tNear < 0 {
		return false
	}
	var n [3]float64
	n[axis] = -voxtrace.Sign(d[axis])
	r.Advance(tNear)
	r.SetNormal(n[0], n[1], n[2])
	return true
}
