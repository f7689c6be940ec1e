package octree

import "io"

// node is a heap allocated octree node. A node with children is a branch.
type node struct {
	typ, data int
	children  *[8]*node
}

func (n *node) isBranch() bool { return n.children != nil }

func (n *node) equals(leaf Node) bool {
	return n.children == nil && n.typ == leaf.Type && n.data == leaf.Data
}

func (n *node) subdivide() {
	var children [8]*node
	for i := range children {
		children[i] = &node{typ: n.typ, data: n.data}
	}
	n.children = &children
}

func (n *node) merge(leaf Node) {
	n.children = nil
	n.typ, n.data = leaf.Type, leaf.Data
}

// nodeTree is the pointer based backend. It has no size ceiling and keeps data words.
type nodeTree struct {
	depth int
	root  *node
}

// NewNodeTree returns the NODE backend.
func NewNodeTree(depth int) (Implementation, error) {
	t, err := newNodeTree(depth)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func newNodeTree(depth int) (*nodeTree, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	return &nodeTree{depth: depth, root: &node{}}, nil
}

func (t *nodeTree) Depth() int { return t.depth }

func (t *nodeTree) Set(n Node, x, y, z int) error {
	var parents [MaxDepth]*node
	nd := t.root
	for i := t.depth - 1; i >= 0; i-- {
		parents[i] = nd
		if nd.equals(n) {
			return nil
		}
		if !nd.isBranch() {
			nd.subdivide()
		}
		nd = nd.children[childIndex(x, y, z, i)]
	}
	nd.typ, nd.data = n.Type, n.Data
	for _, p := range parents[:t.depth] {
		for _, c := range p.children {
			if !c.equals(n) {
				return nil
			}
		}
		p.merge(n)
	}
	return nil
}

// SetCube writes the cube voxel by voxel.
func (t *nodeTree) SetCube(cubeDepth int, types []int, x, y, z int) error {
	side := 1 << cubeDepth
	for cz := 0; cz < side; cz++ {
		for cy := 0; cy < side; cy++ {
			for cx := 0; cx < side; cx++ {
				n := Node{Type: types[cubeIndex(cubeDepth, cx, cy, cz)]}
				if err := t.Set(n, x+cx, y+cy, z+cz); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (t *nodeTree) Get(x, y, z int) Node {
	n, _ := t.GetWithLevel(x, y, z)
	return n
}

func (t *nodeTree) GetWithLevel(x, y, z int) (Node, int) {
	nd := t.root
	level := t.depth
	for nd.isBranch() {
		level--
		nd = nd.children[childIndex(x, y, z, level)]
	}
	return Node{Type: nd.typ, Data: nd.data}, level
}

func (t *nodeTree) EndFinalization() {
	if t.root.isBranch() {
		finalizeNode(t.root)
	}
}

func finalizeNode(nd *node) {
	merged := Node{Type: AnyType}
	mergeable := true
	for _, c := range nd.children {
		if c.isBranch() {
			finalizeNode(c)
			if c.isBranch() {
				mergeable = false
			}
		}
		if !mergeable {
			continue
		}
		leaf := Node{Type: c.typ, Data: c.data}
		if merged.Type == AnyType && merged.Data == 0 {
			merged = leaf
		} else if !(c.typ == AnyType && c.data == 0) && leaf != merged {
			mergeable = false
		}
	}
	if mergeable {
		nd.merge(merged)
	}
}

func (t *nodeTree) NodeCount() int64 {
	return countNodes(t.root)
}

func countNodes(nd *node) int64 {
	n := int64(1)
	if nd.isBranch() {
		for _, c := range nd.children {
			n += countNodes(c)
		}
	}
	return n
}

func (t *nodeTree) Visit(fn VisitFunc) {
	visitNode(fn, t.root, 0, 0, 0, t.depth)
}

func visitNode(fn VisitFunc, nd *node, x, y, z, level int) {
	if !nd.isBranch() {
		fn(Node{Type: nd.typ, Data: nd.data}, x, y, z, level)
		return
	}
	half := 1 << (level - 1)
	for j, c := range nd.children {
		visitNode(fn, c, x+(j>>2&1)*half, y+(j>>1&1)*half, z+(j&1)*half, level-1)
	}
}

func (t *nodeTree) Store(w io.Writer) error {
	ww := newWireWriter(w)
	ww.word(uint32(t.depth))
	storeNode(ww, t.root)
	return ww.flush()
}

func storeNode(ww *wireWriter, nd *node) {
	if ww.err != nil {
		return
	}
	if !nd.isBranch() {
		ww.leaf(Node{Type: nd.typ, Data: nd.data})
		return
	}
	ww.branch()
	for _, c := range nd.children {
		storeNode(ww, c)
	}
}

func (t *nodeTree) load(wr *wireReader) error {
	return loadNode(wr, t.root, t.depth)
}

func loadNode(wr *wireReader, nd *node, level int) error {
	n, branch, err := wr.node()
	if err != nil {
		return err
	}
	if !branch {
		nd.typ, nd.data = n.Type, n.Data
		return nil
	}
	if level == 0 {
		return errBranchTooDeep()
	}
	var children [8]*node
	for i := range children {
		children[i] = &node{}
		if err := loadNode(wr, children[i], level-1); err != nil {
			return err
		}
	}
	nd.children = &children
	return nil
}
