package primitive

import (
	"math"

	"github.com/soypat/voxtrace"
	"gonum.org/v1/gonum/spatial/r3"
)

// Box is a solid axis aligned box. Only entry hits are reported: a ray
// starting inside the box does not hit it.
type Box struct {
	voxtrace.AABB
	Material int
}

var _ Primitive = (*Box)(nil)

func NewBox(b voxtrace.AABB, material int) *Box {
	return &Box{AABB: b, Material: material}
}

// Cube returns the box of the given side centered at c.
func Cube(c r3.Vec, side float64, material int) *Box {
	h := side / 2
	return NewBox(voxtrace.NewAABB(c.X-h, c.X+h, c.Y-h, c.Y+h, c.Z-h, c.Z+h), material)
}

func (s *Box) Bounds() voxtrace.AABB { return s.AABB }

func (s *Box) Intersect(r *voxtrace.Ray) bool {
	mins := [3]float64{s.Xmin, s.Ymin, s.Zmin}
	maxs := [3]float64{s.Xmax, s.Ymax, s.Zmax}
	o := [3]float64{r.O.X, r.O.Y, r.O.Z}
	d := [3]float64{r.D.X, r.D.Y, r.D.Z}
	tNear, tFar := math.Inf(-1), math.Inf(1)
	axis := -1
	var sign float64
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < mins[i] || o[i] > maxs[i] {
				return false
			}
			continue
		}
		t1 := (mins[i] - o[i]) / d[i]
		t2 := (maxs[i] - o[i]) / d[i]
		ns := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			ns = 1
		}
		if t1 > tNear {
			tNear, axis, sign = t1, i, ns
		}
		tFar = math.Min(tFar, t2)
	}
	if axis < 0 || tNear >= tFar+voxtrace.Epsilon || !accept(tNear, r) {
		return false
	}
	var n [3]float64
	n[axis] = sign
	p := r.At(tNear)
	pc := [3]float64{p.X, p.Y, p.Z}
	ua, va := (axis+1)%3, (axis+2)%3
	r.T = tNear
	r.N = r3.Vec{X: n[0], Y: n[1], Z: n[2]}
	r.U = (pc[ua] - mins[ua]) / (maxs[ua] - mins[ua])
	r.V = (pc[va] - mins[va]) / (maxs[va] - mins[va])
	r.SetCurrentMaterial(s.Material, 0)
	return true
}
