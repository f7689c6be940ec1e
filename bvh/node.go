// Package bvh implements an immutable bounding volume hierarchy over entity
// primitives. A hierarchy is built as a tree of Group and Leaf nodes by a
// registered Builder and then packed into a flat int32 array for traversal.
package bvh

import (
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/primitive"
)

// SplitLimit is the primitive count below which a chunk becomes a leaf.
const SplitLimit = 4

// Node is either a *Group or a *Leaf.
type Node interface {
	Bounds() voxtrace.AABB
	// Size is the number of primitives below the node.
	Size() int
}

// Group is an inner node with exactly two children.
type Group struct {
	Child1, Child2 Node

	bounds voxtrace.AABB
	size   int
}

func NewGroup(child1, child2 Node) *Group {
	return &Group{
		Child1: child1,
		Child2: child2,
		bounds: child1.Bounds().Expand(child2.Bounds()),
		size:   child1.Size() + child2.Size(),
	}
}

func (g *Group) Bounds() voxtrace.AABB { return g.bounds }
func (g *Group) Size() int             { return g.size }

type Leaf struct {
	Primitives []primitive.Primitive

	bounds voxtrace.AABB
}

func NewLeaf(prims []primitive.Primitive) *Leaf {
	return &Leaf{Primitives: prims, bounds: primitive.Bounds(prims)}
}

func (l *Leaf) Bounds() voxtrace.AABB { return l.bounds }
func (l *Leaf) Size() int             { return len(l.Primitives) }
