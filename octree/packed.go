package octree

import (
	"io"
	"math"
)

const (
	// DefaultPackedLimit is the slot ceiling of the PACKED backend.
	DefaultPackedLimit = math.MaxInt32 - 16
	// DefaultSegmentShift sizes BIGPACKED segments to 1<<30 slots.
	DefaultSegmentShift = 30

	initialSlots = 64
	// maxPresizeSlots bounds the storage allocated up front from a node count
	// hint. Larger trees grow while loading.
	maxPresizeSlots = 1 << 22
	// tempBranch marks a node of the SetCube scratch tree that could not be merged.
	tempBranch = 1
)

type slot interface {
	~int32 | ~int64
}

// packed is an octree stored in flat slot arrays. A slot v > 0 is a branch and v is
// the index of the first of its 8 contiguous children. A slot v <= 0 is a leaf
// holding the encoded leaf -v. Blocks of 8 slots freed by merges are threaded
// into a free list through their first slot.
//
// PACKED uses a single []int32 segment and stores only types. BIGPACKED uses
// []int64 segments and keeps the data word in the upper bits of the leaf.
type packed[T slot] struct {
	name  string
	depth int

	segs     [][]T
	shift    uint
	mask     int
	capacity int
	limit    int
	// size is the number of slots handed out, free blocks included.
	size      int
	freeHead  int
	freeCount int

	withData bool
	// temp holds the levels of the SetCube scratch tree in Morton order.
	temp [][]T
}

func newPacked[T slot](name string, depth int, shift uint, limit int, withData bool) (*packed[T], error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	initial := min(initialSlots, limit, 1<<shift)
	return &packed[T]{
		name:     name,
		depth:    depth,
		segs:     [][]T{make([]T, initial)},
		shift:    shift,
		mask:     1<<shift - 1,
		capacity: initial,
		limit:    limit,
		size:     1,
		freeHead: -1,
		withData: withData,
	}, nil
}

func (t *packed[T]) Depth() int { return t.depth }

func (t *packed[T]) at(i int) T {
	return t.segs[i>>t.shift][i&t.mask]
}

func (t *packed[T]) put(i int, v T) {
	t.segs[i>>t.shift][i&t.mask] = v
}

func (t *packed[T]) encode(n Node) T {
	if t.withData {
		return T(-(int64(n.Type)<<32 | int64(uint32(n.Data))))
	}
	return T(-n.Type)
}

func (t *packed[T]) decode(v T) Node {
	if t.withData {
		w := -int64(v)
		return Node{Type: int(w >> 32), Data: int(int32(uint32(w)))}
	}
	return Node{Type: int(-v)}
}

// grow ensures capacity for need slots, growing by half the current capacity at a time.
func (t *packed[T]) grow(need int) error {
	if need <= t.capacity {
		return nil
	}
	if need > t.limit {
		return &TooBigError{Implementation: t.name, Requested: int64(need), Limit: int64(t.limit)}
	}
	newCap := t.capacity + (t.capacity+1)/2
	newCap = min(max(newCap, need), t.limit)
	segSize := 1 << t.shift
	for t.capacity < newCap {
		last := len(t.segs) - 1
		seg := t.segs[last]
		if len(seg) < segSize {
			n := min(segSize, len(seg)+newCap-t.capacity)
			grown := make([]T, n)
			copy(grown, seg)
			t.segs[last] = grown
			t.capacity += n - len(seg)
			continue
		}
		n := min(segSize, newCap-t.capacity)
		t.segs = append(t.segs, make([]T, n))
		t.capacity += n
	}
	return nil
}

// reserve makes sure the next n calls to findSpace succeed without growing.
func (t *packed[T]) reserve(blocks int) error {
	if blocks <= t.freeCount {
		return nil
	}
	return t.grow(t.size + 8*(blocks-t.freeCount))
}

// findSpace returns the first slot of an unused block of 8. Callers reserve first.
func (t *packed[T]) findSpace() int {
	if t.freeHead != -1 {
		idx := t.freeHead
		t.freeHead = int(t.at(idx))
		t.freeCount--
		return idx
	}
	idx := t.size
	t.size += 8
	return idx
}

func (t *packed[T]) freeSpace(first int) {
	t.put(first, T(t.freeHead))
	t.freeHead = first
	t.freeCount++
}

func (t *packed[T]) freeSubtree(idx int) {
	v := t.at(idx)
	if v <= 0 {
		return
	}
	first := int(v)
	for j := 0; j < 8; j++ {
		t.freeSubtree(first + j)
	}
	t.freeSpace(first)
}

// subdivide turns the leaf at idx into a branch whose 8 children copy the leaf.
func (t *packed[T]) subdivide(idx int) {
	v := t.at(idx)
	first := t.findSpace()
	for j := 0; j < 8; j++ {
		t.put(first+j, v)
	}
	t.put(idx, T(first))
}

// mergeUp collapses parents[0], parents[1], ... into leaves of value while all
// their children equal value, stopping at the first parent that cannot merge.
func (t *packed[T]) mergeUp(parents []int, value T) {
	for _, p := range parents {
		first := int(t.at(p))
		for j := 0; j < 8; j++ {
			if t.at(first+j) != value {
				return
			}
		}
		t.freeSpace(first)
		t.put(p, value)
	}
}

func (t *packed[T]) Set(n Node, x, y, z int) error {
	if err := t.reserve(t.depth); err != nil {
		return err
	}
	value := t.encode(n)
	var parents [MaxDepth]int
	idx := 0
	for i := t.depth - 1; i >= 0; i-- {
		parents[i] = idx
		v := t.at(idx)
		if v == value {
			return nil
		}
		if v <= 0 {
			t.subdivide(idx)
			v = t.at(idx)
		}
		idx = int(v) + childIndex(x, y, z, i)
	}
	t.put(idx, value)
	t.mergeUp(parents[:t.depth], value)
	return nil
}

func (t *packed[T]) Get(x, y, z int) Node {
	n, _ := t.GetWithLevel(x, y, z)
	return n
}

func (t *packed[T]) GetWithLevel(x, y, z int) (Node, int) {
	idx := 0
	level := t.depth
	for v := t.at(0); v > 0; v = t.at(idx) {
		level--
		idx = int(v) + childIndex(x, y, z, level)
	}
	return t.decode(t.at(idx)), level
}

func (t *packed[T]) SetCube(cubeDepth int, types []int, x, y, z int) error {
	branches := t.buildTemp(cubeDepth, types)
	if err := t.reserve(t.depth - cubeDepth + branches); err != nil {
		return err
	}
	top := t.temp[0][0]
	var parents [MaxDepth]int
	idx := 0
	for i := t.depth - 1; i >= cubeDepth; i-- {
		parents[i] = idx
		v := t.at(idx)
		if top <= 0 && v == top {
			return nil
		}
		if v <= 0 {
			t.subdivide(idx)
			v = t.at(idx)
		}
		idx = int(v) + childIndex(x, y, z, i)
	}
	t.freeSubtree(idx)
	value := t.insertTemp(0, 0)
	t.put(idx, value)
	if value <= 0 {
		t.mergeUp(parents[cubeDepth:t.depth], value)
	}
	return nil
}

// buildTemp fills the scratch tree for a cube and returns how many of its nodes are branches.
// Leaves merge when they are equal or AnyType.
func (t *packed[T]) buildTemp(cubeDepth int, types []int) (branches int) {
	for len(t.temp) <= cubeDepth {
		t.temp = append(t.temp, make([]T, 1<<(3*len(t.temp))))
	}
	side := 1 << cubeDepth
	leaves := t.temp[cubeDepth]
	for cz := 0; cz < side; cz++ {
		for cy := 0; cy < side; cy++ {
			for cx := 0; cx < side; cx++ {
				typ := types[cubeIndex(cubeDepth, cx, cy, cz)]
				leaves[morton(cx, cy, cz)] = t.encode(Node{Type: typ})
			}
		}
	}
	anyValue := t.encode(Node{Type: AnyType})
	for d := cubeDepth - 1; d >= 0; d-- {
		children := t.temp[d+1]
		level := t.temp[d]
		for p := range level {
			merged := children[8*p]
			mergeable := merged <= 0
			for c := 1; c < 8 && mergeable; c++ {
				v := children[8*p+c]
				switch {
				case v > 0:
					mergeable = false
				case merged == anyValue:
					merged = v
				case v != merged && v != anyValue:
					mergeable = false
				}
			}
			if mergeable {
				level[p] = merged
			} else {
				level[p] = tempBranch
				branches++
			}
		}
	}
	return branches
}

func (t *packed[T]) insertTemp(level, idx int) T {
	v := t.temp[level][idx]
	if v <= 0 {
		return v
	}
	first := t.findSpace()
	for j := 0; j < 8; j++ {
		t.put(first+j, t.insertTemp(level+1, 8*idx+j))
	}
	return T(first)
}

// morton interleaves the low 10 bits of x, y and z as ...x1y1z1x0y0z0.
func morton(x, y, z int) int {
	return splitBy3(x)<<2 | splitBy3(y)<<1 | splitBy3(z)
}

func splitBy3(a int) int {
	x := uint32(a) & 0x3ff
	x = (x | x<<16) & 0x030000ff
	x = (x | x<<8) & 0x0300f00f
	x = (x | x<<4) & 0x030c30c3
	x = (x | x<<2) & 0x09249249
	return int(x)
}

func (t *packed[T]) EndFinalization() {
	t.temp = nil
	if t.at(0) > 0 {
		t.finalize(0)
	}
}

// finalize merges the branch at idx if its children, after finalizing, are all
// leaves of one type or AnyType.
func (t *packed[T]) finalize(idx int) {
	anyValue := t.encode(Node{Type: AnyType})
	first := int(t.at(idx))
	merged := anyValue
	mergeable := true
	for j := 0; j < 8; j++ {
		c := first + j
		if t.at(c) > 0 {
			t.finalize(c)
			if t.at(c) > 0 {
				mergeable = false
			}
		}
		if !mergeable {
			continue
		}
		v := t.at(c)
		if merged == anyValue {
			merged = v
		} else if v != anyValue && v != merged {
			mergeable = false
		}
	}
	if mergeable {
		t.freeSpace(first)
		t.put(idx, merged)
	}
}

func (t *packed[T]) NodeCount() int64 {
	return t.countNodes(0)
}

func (t *packed[T]) countNodes(idx int) int64 {
	v := t.at(idx)
	if v <= 0 {
		return 1
	}
	n := int64(1)
	for j := 0; j < 8; j++ {
		n += t.countNodes(int(v) + j)
	}
	return n
}

func (t *packed[T]) Visit(fn VisitFunc) {
	t.visit(fn, 0, 0, 0, 0, t.depth)
}

func (t *packed[T]) visit(fn VisitFunc, idx, x, y, z, level int) {
	v := t.at(idx)
	if v <= 0 {
		fn(t.decode(v), x, y, z, level)
		return
	}
	half := 1 << (level - 1)
	for j := 0; j < 8; j++ {
		t.visit(fn, int(v)+j, x+(j>>2&1)*half, y+(j>>1&1)*half, z+(j&1)*half, level-1)
	}
}

func (t *packed[T]) Usage() Usage {
	return Usage{Slots: t.size, Capacity: t.capacity, FreeBlocks: t.freeCount, Limit: t.limit}
}

func (t *packed[T]) Store(w io.Writer) error {
	ww := newWireWriter(w)
	ww.word(uint32(t.depth))
	t.storeNode(ww, 0)
	return ww.flush()
}

func (t *packed[T]) storeNode(ww *wireWriter, idx int) {
	if ww.err != nil {
		return
	}
	v := t.at(idx)
	if v <= 0 {
		ww.leaf(t.decode(v))
		return
	}
	ww.branch()
	for j := 0; j < 8; j++ {
		t.storeNode(ww, int(v)+j)
	}
}

// load reads the nodes of a wire stream whose depth word has been consumed.
func (t *packed[T]) load(wr *wireReader, nodeCountHint int64) error {
	if hint := min(nodeCountHint, int64(t.limit), maxPresizeSlots); hint > 0 {
		if err := t.grow(int(hint)); err != nil {
			return err
		}
	}
	return t.loadNode(wr, 0, t.depth)
}

func (t *packed[T]) loadNode(wr *wireReader, idx, level int) error {
	n, branch, err := wr.node()
	if err != nil {
		return err
	}
	if !branch {
		t.put(idx, t.encode(n))
		return nil
	}
	if level == 0 {
		return errBranchTooDeep()
	}
	if err := t.reserve(1); err != nil {
		return err
	}
	first := t.findSpace()
	t.put(idx, T(first))
	for j := 0; j < 8; j++ {
		if err := t.loadNode(wr, first+j, level-1); err != nil {
			return err
		}
	}
	return nil
}
