package emitter

import (
	"cmp"
	"math"
	"slices"

	"github.com/soypat/voxtrace/internal/d3"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ kdtree.Interface  = kdEmitters{}
	_ kdtree.Bounder    = kdEmitters{}
	_ kdtree.Comparable = kdEmitter{}
)

func (g *Grid) buildIndex() {
	g.kd = nil
	if len(g.positions) == 0 {
		return
	}
	k := make(kdEmitters, len(g.positions))
	for i, p := range g.positions {
		k[i] = kdEmitter{c: p.Center(), index: i}
	}
	g.kd = kdtree.New(k, true)
}

// Nearest returns the emitter whose voxel centre is closest to p and the
// distance between them. It returns false for a grid without emitters.
func (g *Grid) Nearest(p r3.Vec) (Position, float64, bool) {
	g.mustBePrepared()
	if g.kd == nil {
		return Position{}, 0, false
	}
	got, d2 := g.kd.Nearest(kdEmitter{c: p, index: -1})
	return g.positions[got.(kdEmitter).index], math.Sqrt(d2), true
}

// NearestN returns up to n emitters closest to p, nearest first.
func (g *Grid) NearestN(p r3.Vec, n int) []Position {
	g.mustBePrepared()
	if g.kd == nil || n <= 0 {
		return nil
	}
	keep := kdtree.NewNKeeper(n)
	g.kd.NearestSet(keep, kdEmitter{c: p, index: -1})
	ps := make([]Position, 0, n)
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		ps = append(ps, g.positions[cd.Comparable.(kdEmitter).index])
	}
	// The keeper holds a heap, not a sorted list.
	sortByDistance(ps, p)
	return ps
}

func sortByDistance(ps []Position, p r3.Vec) {
	slices.SortFunc(ps, func(a, b Position) int {
		return cmp.Compare(r3.Norm2(r3.Sub(a.Center(), p)), r3.Norm2(r3.Sub(b.Center(), p)))
	})
}

type kdEmitters []kdEmitter

type kdEmitter struct {
	c     r3.Vec
	index int
}

func (k kdEmitters) Index(i int) kdtree.Comparable { return k[i] }

func (k kdEmitters) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdEmitters) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), emitters: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (k kdEmitters) Slice(start, end int) kdtree.Interface { return k[start:end] }

func (k kdEmitters) Bounds() *kdtree.Bounding {
	min := d3.Elem(math.MaxFloat64)
	max := d3.Elem(-math.MaxFloat64)
	for _, e := range k {
		min = d3.MinElem(min, e.c)
		max = d3.MaxElem(max, e.c)
	}
	return &kdtree.Bounding{
		Min: kdEmitter{c: min, index: -1},
		Max: kdEmitter{c: max, index: -1},
	}
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a kdEmitter) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a, b.(kdEmitter), int(d))
}

func (a kdEmitter) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the centres.
func (a kdEmitter) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.c, b.(kdEmitter).c))
}

// c = a.dim - b.dim
func kdComp(a, b kdEmitter, dim int) float64 {
	switch dim {
	case 0:
		return a.c.X - b.c.X
	case 1:
		return a.c.Y - b.c.Y
	}
	return a.c.Z - b.c.Z
}

type kdPlane struct {
	dim      int
	emitters kdEmitters
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.emitters[i], p.emitters[j], p.dim) < 0
}
func (p kdPlane) Swap(i, j int) {
	p.emitters[i], p.emitters[j] = p.emitters[j], p.emitters[i]
}
func (p kdPlane) Len() int {
	return len(p.emitters)
}
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.emitters = p.emitters[start:end]
	return p
}
