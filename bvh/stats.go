package bvh

// Stats summarises the shape of a packed hierarchy.
type Stats struct {
	Nodes      int
	Leaves     int
	Primitives int
	// MaxLeafSize is the largest primitive count in a single leaf.
	MaxLeafSize int
	// MaxDepth is the depth of the deepest leaf, the root being depth 0.
	MaxDepth int
	// StackDepth is the largest traversal stack recorded while packing.
	StackDepth int
	// LeafDepths holds the depth of every leaf in pack order.
	LeafDepths []int
	// SurfaceArea is the summed surface area of all packed boxes below the root
	// divided by the root's, a rough traversal cost measure.
	SurfaceArea float64
}

// Stats walks the packed array.
func (b *BVH) Stats() Stats {
	s := Stats{StackDepth: b.depth}
	if b.IsEmpty() {
		return s
	}
	rootArea := b.Bounds().SurfaceArea
	type visit struct{ i, depth int }
	stack := []visit{{0, 0}}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s.Nodes++
		if v.i != 0 && rootArea > 0 {
			bx := b.box(v.i)
			dx, dy, dz := float64(bx.Max.X-bx.Min.X), float64(bx.Max.Y-bx.Min.Y), float64(bx.Max.Z-bx.Min.Z)
			s.SurfaceArea += 2 * (dy*dz + dx*dz + dx*dy) / rootArea
		}
		w := b.packed[v.i]
		if w <= 0 {
			n := len(b.leaves[-w])
			s.Leaves++
			s.Primitives += n
			s.MaxLeafSize = max(s.MaxLeafSize, n)
			s.MaxDepth = max(s.MaxDepth, v.depth)
			s.LeafDepths = append(s.LeafDepths, v.depth)
			continue
		}
		stack = append(stack, visit{int(w), v.depth + 1}, visit{v.i + nodeWords, v.depth + 1})
	}
	return s
}
