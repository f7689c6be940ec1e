package bvh

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/primitive"
	"gonum.org/v1/gonum/spatial/r3"
)

// nodeWords is the size of a packed node: the child/leaf word followed by the
// float32 bits of xmin, xmax, ymin, ymax, zmin, zmax.
const nodeWords = 7

// BVH is a packed, immutable hierarchy. It is safe for concurrent queries.
//
// Node i occupies packed[i:i+7]. packed[i] > 0 is the index of the second
// child, the first child following at i+7. packed[i] <= 0 marks a leaf whose
// primitives are leaves[-packed[i]].
type BVH struct {
	packed []int32
	leaves [][]primitive.Primitive
	// depth is the largest traversal stack seen while packing.
	depth int
}

type packItem struct {
	parent int // index of the word to patch with this node's position, or -1
	node   Node
}

// Pack flattens the tree rooted at root. A nil root packs to an empty BVH that
// never reports hits.
func Pack(root Node) *BVH {
	b := &BVH{}
	if root == nil {
		return b
	}
	b.packed = make([]int32, 0, nodeWords*(2*root.Size()/SplitLimit+1))
	stack := []packItem{{parent: -1, node: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		idx := len(b.packed)
		if it.parent >= 0 {
			b.packed[it.parent] = int32(idx)
		}
		b.packed = append(b.packed, 0)
		b.packed = appendBounds(b.packed, it.node.Bounds())
		switch n := it.node.(type) {
		case *Group:
			stack = append(stack, packItem{parent: idx, node: n.Child2}, packItem{parent: -1, node: n.Child1})
		case *Leaf:
			b.packed[idx] = -int32(len(b.leaves))
			b.leaves = append(b.leaves, n.Primitives)
		default:
			panic("bvh: unknown node type")
		}
		b.depth = max(b.depth, len(stack))
	}
	return b
}

// appendBounds narrows box to float32, rounding each face outward so that the
// packed box always contains the original.
func appendBounds(dst []int32, box voxtrace.AABB) []int32 {
	return append(dst,
		int32(math.Float32bits(roundDown(box.Xmin))), int32(math.Float32bits(roundUp(box.Xmax))),
		int32(math.Float32bits(roundDown(box.Ymin))), int32(math.Float32bits(roundUp(box.Ymax))),
		int32(math.Float32bits(roundDown(box.Zmin))), int32(math.Float32bits(roundUp(box.Zmax))),
	)
}

func roundDown(v float64) float32 {
	f := float32(v)
	if float64(f) > v {
		f = math32.Nextafter(f, math32.Inf(-1))
	}
	return f
}

func roundUp(v float64) float32 {
	f := float32(v)
	if float64(f) < v {
		f = math32.Nextafter(f, math32.Inf(1))
	}
	return f
}

// box decodes the packed bounds of the node at i.
func (b *BVH) box(i int) ms3.Box {
	w := b.packed[i+1 : i+nodeWords]
	f := func(j int) float32 { return math.Float32frombits(uint32(w[j])) }
	return ms3.Box{
		Min: ms3.Vec{X: f(0), Y: f(2), Z: f(4)},
		Max: ms3.Vec{X: f(1), Y: f(3), Z: f(5)},
	}
}

// IsEmpty reports whether the hierarchy holds no primitives.
func (b *BVH) IsEmpty() bool { return len(b.packed) == 0 }

// Bounds returns the packed bounds of the root, or voxtrace.EmptyAABB.
func (b *BVH) Bounds() voxtrace.AABB {
	if b.IsEmpty() {
		return voxtrace.EmptyAABB()
	}
	bx := b.box(0)
	return voxtrace.NewAABB(
		float64(bx.Min.X), float64(bx.Max.X),
		float64(bx.Min.Y), float64(bx.Max.Y),
		float64(bx.Min.Z), float64(bx.Max.Z),
	)
}

// Depth is the largest traversal stack recorded while packing.
func (b *BVH) Depth() int { return b.depth }

// entry returns the distance at which the ray enters the packed box of node i,
// negative when the origin is inside. ok is false on a miss or when the box
// lies behind the ray. Axes the ray does not move along only require the origin
// to lie within the slab, boundary included.
func (b *BVH) entry(i int, o, d, inv r3.Vec) (t float64, ok bool) {
	bx := b.box(i)
	tmin, tmax := math.Inf(-1), math.Inf(1)
	for _, s := range [3]struct {
		lo, hi    float32
		o, d, inv float64
	}{
		{bx.Min.X, bx.Max.X, o.X, d.X, inv.X},
		{bx.Min.Y, bx.Max.Y, o.Y, d.Y, inv.Y},
		{bx.Min.Z, bx.Max.Z, o.Z, d.Z, inv.Z},
	} {
		lo, hi := float64(s.lo), float64(s.hi)
		if s.d == 0 || math.IsInf(s.inv, 0) {
			if s.o < lo || s.o > hi {
				return 0, false
			}
			continue
		}
		t1, t2 := (lo-s.o)*s.inv, (hi-s.o)*s.inv
		tmin = math.Max(tmin, math.Min(t1, t2))
		tmax = math.Min(tmax, math.Max(t1, t2))
	}
	if tmin <= tmax+voxtrace.Offset && tmax >= 0 {
		return tmin, true
	}
	return 0, false
}

// ClosestIntersection finds the closest primitive hit nearer than r.T. On a hit
// the primitive updates r.T, r.N, r.U, r.V and r.CurrentMaterial.
func (b *BVH) ClosestIntersection(r *voxtrace.Ray) bool {
	return b.traverse(r, false)
}

// AnyIntersection reports whether any primitive is hit nearer than r.T,
// stopping at the first one found.
func (b *BVH) AnyIntersection(r *voxtrace.Ray) bool {
	return b.traverse(r, true)
}

func (b *BVH) traverse(r *voxtrace.Ray, anyHit bool) bool {
	if b.IsEmpty() {
		return false
	}
	var buf [64]int
	stack := buf[:0]
	inv := r3.Vec{X: 1 / r.D.X, Y: 1 / r.D.Y, Z: 1 / r.D.Z}
	hit := false
	cur := 0
	for {
		if w := b.packed[cur]; w <= 0 {
			for _, p := range b.leaves[-w] {
				if p.Intersect(r) {
					if anyHit {
						return true
					}
					hit = true
				}
			}
			if len(stack) == 0 {
				return hit
			}
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			continue
		}
		c1, c2 := cur+nodeWords, int(b.packed[cur])
		t1, ok1 := b.entry(c1, r.O, r.D, inv)
		t2, ok2 := b.entry(c2, r.O, r.D, inv)
		ok1 = ok1 && t1 <= r.T
		ok2 = ok2 && t2 <= r.T
		switch {
		case !ok1 && !ok2:
			if len(stack) == 0 {
				return hit
			}
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		case !ok2:
			cur = c1
		case !ok1:
			cur = c2
		case t1 <= t2:
			stack = append(stack, c2)
			cur = c1
		default:
			stack = append(stack, c1)
			cur = c2
		}
	}
}
