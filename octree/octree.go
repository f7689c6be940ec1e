package octree

import (
	"bytes"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/log"
	"gonum.org/v1/gonum/spatial/r3"
)

var logger = log.New("octree")

const (
	// BranchNode is the type reported for branches and the branch marker of the wire format.
	BranchNode = -1
	// AnyType marks voxels whose type does not matter. EndFinalization merges
	// them into whatever their siblings are.
	AnyType = 0x7FFFFFFE
	// DataFlag is set on a wire leaf type word when a data word follows.
	DataFlag uint32 = 0x80000000

	// MaxDepth is the deepest octree supported, a cube of side 2^31.
	MaxDepth = 31
	// MaxCubeDepth limits the side of cubes written with SetCube to 2^MaxCubeDepth.
	MaxCubeDepth = 8
)

// Node is an octree node as seen through an Implementation. Leaves have a
// non-negative Type and an optional Data word; branches have Type BranchNode.
type Node struct {
	Type int
	Data int
}

// IsBranch reports whether n is a branch.
func (n Node) IsBranch() bool { return n.Type == BranchNode }

// VisitFunc is called for every leaf with the minimum corner of the cube the leaf
// covers and its level. The cube side is 1<<level.
type VisitFunc func(leaf Node, x, y, z, level int)

// Implementation is an octree storage backend. Implementations are not safe for
// concurrent use when any goroutine mutates them; Octree serializes mutation.
// Coordinates passed to an Implementation are assumed to be inside the cube.
type Implementation interface {
	// Depth returns the depth of the tree. The tree covers [0, 2^depth) on each axis.
	Depth() int
	// Set writes a leaf at the voxel (x,y,z), subdividing and merging as needed
	// so no branch ends up with 8 equal leaf children.
	Set(n Node, x, y, z int) error
	// SetCube writes a cube of side 2^cubeDepth with minimum corner (x,y,z). types
	// is indexed as types[(cz<<(2*cubeDepth)) + (cy<<cubeDepth) + cx].
	SetCube(cubeDepth int, types []int, x, y, z int) error
	// Get returns the leaf containing the voxel.
	Get(x, y, z int) Node
	// GetWithLevel returns the leaf containing the voxel and the level of that leaf.
	GetWithLevel(x, y, z int) (Node, int)
	// Store writes the tree in wire format.
	Store(w io.Writer) error
	// NodeCount returns the number of branches and leaves in the tree.
	NodeCount() int64
	// EndFinalization merges AnyType leaves with their siblings.
	EndFinalization()
	// Visit calls fn for every leaf in pre-order.
	Visit(fn VisitFunc)
}

// Usage describes the storage of a packed backend.
type Usage struct {
	// Slots in use, including freed blocks.
	Slots int
	// Capacity is the number of allocated slots.
	Capacity int
	// FreeBlocks is the length of the free list, in blocks of 8 slots.
	FreeBlocks int
	// Limit is the maximum number of slots.
	Limit int
}

// UsageReporter is implemented by backends that can report storage usage.
type UsageReporter interface {
	Usage() Usage
}

// Octree is a sparse voxel octree with a swappable storage backend.
// All mutation goes through one mutex. Readers use a View.
type Octree struct {
	mu   sync.Mutex
	impl Implementation
	name string
}

// New creates an octree of side 2^depth filled with type 0, stored by the named
// implementation. An empty name selects DefaultImplementation.
func New(implName string, depth int) (*Octree, error) {
	if implName == "" {
		implName = DefaultImplementation
	}
	f, err := Lookup(implName)
	if err != nil {
		return nil, err
	}
	impl, err := f.Create(depth)
	if err != nil {
		return nil, err
	}
	return &Octree{impl: impl, name: f.Name()}, nil
}

// FromImplementation wraps an existing backend. The implementation name is
// resolved through the registry and is empty for unregistered backends.
func FromImplementation(impl Implementation) *Octree {
	o := &Octree{impl: impl}
	for _, f := range Factories() {
		if f.IsOfType(impl) {
			o.name = f.Name()
			break
		}
	}
	return o
}

// Load reads an octree in wire format from r using the named implementation.
func Load(implName string, r io.Reader) (*Octree, error) {
	return loadWithHint(implName, r, 0)
}

func loadWithHint(implName string, r io.Reader, nodeCountHint int64) (*Octree, error) {
	if implName == "" {
		implName = DefaultImplementation
	}
	f, err := Lookup(implName)
	if err != nil {
		return nil, err
	}
	impl, err := f.Load(r, nodeCountHint)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s octree", f.Name())
	}
	return &Octree{impl: impl, name: f.Name()}, nil
}

// Depth returns the depth of the octree.
func (o *Octree) Depth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.impl.Depth()
}

// ImplementationName returns the registry name of the current backend.
func (o *Octree) ImplementationName() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.name
}

// Implementation returns the current backend. It must not be mutated directly.
func (o *Octree) Implementation() Implementation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.impl
}

// Set writes block type typ at (x,y,z).
func (o *Octree) Set(typ, x, y, z int) error {
	return o.SetNode(Node{Type: typ}, x, y, z)
}

// SetNode writes a leaf with data at (x,y,z). Backends that do not store data drop it.
func (o *Octree) SetNode(n Node, x, y, z int) error {
	if err := checkType(n.Type); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !(voxtrace.V3i{x, y, z}).InCube(o.impl.Depth()) {
		return errors.Wrapf(ErrOutOfBounds, "set (%d,%d,%d)", x, y, z)
	}
	return o.impl.Set(n, x, y, z)
}

// SetCube writes a whole cube of side 2^cubeDepth at once. The minimum corner (x,y,z) must
// be aligned to the cube side. See Implementation.SetCube for the layout of types.
func (o *Octree) SetCube(cubeDepth int, types []int, x, y, z int) error {
	for _, typ := range types {
		if err := checkType(typ); err != nil {
			return err
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := checkCube(o.impl.Depth(), cubeDepth, types, x, y, z); err != nil {
		return err
	}
	return o.impl.SetCube(cubeDepth, types, x, y, z)
}

// UpdateCube reads the types of a cube, lets fn modify them in place and writes
// the cube back, all under the octree lock.
func (o *Octree) UpdateCube(cubeDepth, x, y, z int, fn func(types []int)) error {
	if cubeDepth < 0 || cubeDepth > MaxCubeDepth {
		return errors.Wrapf(ErrInvalidCube, "cube depth %d", cubeDepth)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	side := 1 << cubeDepth
	types := make([]int, side*side*side)
	if err := checkCube(o.impl.Depth(), cubeDepth, types, x, y, z); err != nil {
		return err
	}
	for cz := 0; cz < side; cz++ {
		for cy := 0; cy < side; cy++ {
			for cx := 0; cx < side; cx++ {
				types[cubeIndex(cubeDepth, cx, cy, cz)] = o.impl.Get(x+cx, y+cy, z+cz).Type
			}
		}
	}
	fn(types)
	for _, typ := range types {
		if err := checkType(typ); err != nil {
			return err
		}
	}
	return o.impl.SetCube(cubeDepth, types, x, y, z)
}

// Get returns the leaf at (x,y,z). It panics if the voxel is outside the octree.
func (o *Octree) Get(x, y, z int) Node {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !(voxtrace.V3i{x, y, z}).InCube(o.impl.Depth()) {
		panic("octree: get outside octree")
	}
	return o.impl.Get(x, y, z)
}

// NodeCount returns the number of nodes of the tree.
func (o *Octree) NodeCount() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.impl.NodeCount()
}

// EndFinalization merges AnyType leaves into their siblings. It is called once
// scene construction is over.
func (o *Octree) EndFinalization() {
	o.mu.Lock()
	defer o.mu.Unlock()
	before := o.impl.NodeCount()
	o.impl.EndFinalization()
	logger.Debugf("finalized %s octree: %d nodes, %d before", o.name, o.impl.NodeCount(), before)
}

// Store writes the tree in wire format.
func (o *Octree) Store(w io.Writer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.impl.Store(w)
}

// IsInside reports whether p lies inside the octree cube.
func (o *Octree) IsInside(p r3.Vec) bool {
	return o.View().IsInside(p)
}

// SwitchImplementation moves the tree to another backend by storing it in wire
// format, releasing the current backend and loading the stream under the new one.
// The switch is not atomic: if loading fails the octree has no backend left and
// must be discarded.
func (o *Octree) SwitchImplementation(name string) error {
	f, err := Lookup(name)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if f.IsOfType(o.impl) {
		return nil
	}
	var buf bytes.Buffer
	if err := o.impl.Store(&buf); err != nil {
		return err
	}
	count := o.impl.NodeCount()
	from := o.name
	o.impl, o.name = nil, ""
	impl, err := f.Load(&buf, count)
	if err != nil {
		return errors.Wrapf(err, "switching octree from %s to %s", from, f.Name())
	}
	o.impl, o.name = impl, f.Name()
	logger.Noticef("switched octree implementation from %s to %s (%d nodes)", from, o.name, count)
	return nil
}

// View returns a read-only view of the current backend for concurrent traversal.
// A view must not be used while the octree is being mutated, and keeps observing
// the old backend after SwitchImplementation.
func (o *Octree) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return View{impl: o.impl, depth: o.impl.Depth()}
}

func childIndex(x, y, z, level int) int {
	return ((x>>level)&1)<<2 | ((y>>level)&1)<<1 | (z>>level)&1
}

func cubeIndex(cubeDepth, cx, cy, cz int) int {
	return (cz << (2 * cubeDepth)) + (cy << cubeDepth) + cx
}

func checkDepth(depth int) error {
	if depth < 1 || depth > MaxDepth {
		return errors.Wrapf(ErrInvalidDepth, "depth %d not in [1,%d]", depth, MaxDepth)
	}
	return nil
}

func checkType(typ int) error {
	if typ < 0 || typ > AnyType {
		return errors.Wrapf(ErrInvalidType, "type %d", typ)
	}
	return nil
}

func checkCube(depth, cubeDepth int, types []int, x, y, z int) error {
	if cubeDepth < 0 || cubeDepth > MaxCubeDepth || cubeDepth > depth {
		return errors.Wrapf(ErrInvalidCube, "cube depth %d", cubeDepth)
	}
	side := 1 << cubeDepth
	if len(types) != side*side*side {
		return errors.Wrapf(ErrInvalidCube, "got %d types for cube of side %d", len(types), side)
	}
	mask := side - 1
	if x&mask != 0 || y&mask != 0 || z&mask != 0 {
		return errors.Wrapf(ErrInvalidCube, "corner (%d,%d,%d) not aligned to %d", x, y, z, side)
	}
	if !(voxtrace.V3i{x, y, z}).InCube(depth) {
		return errors.Wrapf(ErrOutOfBounds, "cube at (%d,%d,%d)", x, y, z)
	}
	return nil
}
