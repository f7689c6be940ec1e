package octree

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
)

var implNames = []string{"NODE", "PACKED", "BIGPACKED"}

type setOp struct {
	n       Node
	x, y, z int
}

// randomSets returns set operations with few distinct types so that merges happen often.
func randomSets(rng *rand.Rand, depth, count, types int) []setOp {
	side := 1 << depth
	ops := make([]setOp, count)
	for i := range ops {
		ops[i] = setOp{
			n: Node{Type: rng.Intn(types)},
			x: rng.Intn(side), y: rng.Intn(side), z: rng.Intn(side),
		}
	}
	return ops
}

// blockSets fills random aligned cubes voxel by voxel, producing large merged regions.
func blockSets(rng *rand.Rand, depth, count int) []setOp {
	side := 1 << depth
	var ops []setOp
	for i := 0; i < count; i++ {
		bs := 1 << rng.Intn(depth)
		x0, y0, z0 := rng.Intn(side/bs)*bs, rng.Intn(side/bs)*bs, rng.Intn(side/bs)*bs
		typ := rng.Intn(3)
		for x := x0; x < x0+bs; x++ {
			for y := y0; y < y0+bs; y++ {
				for z := z0; z < z0+bs; z++ {
					ops = append(ops, setOp{n: Node{Type: typ}, x: x, y: y, z: z})
				}
			}
		}
	}
	return ops
}

func buildTree(t testing.TB, name string, depth int, ops []setOp) *Octree {
	t.Helper()
	o, err := New(name, depth)
	if err != nil {
		t.Fatal(err)
	}
	for _, op := range ops {
		if err := o.SetNode(op.n, op.x, op.y, op.z); err != nil {
			t.Fatal(err)
		}
	}
	return o
}

func forEachVoxel(depth int, fn func(x, y, z int)) {
	side := 1 << depth
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				fn(x, y, z)
			}
		}
	}
}

func assertSameVoxels(t *testing.T, got, want *Octree) {
	t.Helper()
	mismatches := 0
	forEachVoxel(want.Depth(), func(x, y, z int) {
		g, w := got.Get(x, y, z), want.Get(x, y, z)
		if g != w && mismatches < 10 {
			mismatches++
			t.Errorf("voxel (%d,%d,%d) got %+v, want %+v", x, y, z, g, w)
		}
	})
}

// checkCanonical scans the wire stream of o for branches whose 8 children are equal leaves.
func checkCanonical(t *testing.T, o *Octree) {
	t.Helper()
	var buf bytes.Buffer
	if err := o.Store(&buf); err != nil {
		t.Fatal(err)
	}
	wr := newWireReader(&buf)
	depth, err := wr.depth()
	if err != nil {
		t.Fatal(err)
	}
	var walk func(level int) (Node, bool)
	walk = func(level int) (Node, bool) {
		n, branch, err := wr.node()
		if err != nil {
			t.Fatal(err)
		}
		if !branch {
			return n, true
		}
		var children [8]Node
		allLeaves := true
		for i := range children {
			c, leaf := walk(level - 1)
			children[i] = c
			allLeaves = allLeaves && leaf
		}
		if allLeaves {
			equal := true
			for _, c := range children[1:] {
				equal = equal && c == children[0]
			}
			if equal {
				t.Errorf("branch at level %d has 8 children equal to %+v", level, children[0])
			}
		}
		return Node{Type: BranchNode}, false
	}
	walk(depth)
	if buf.Len() != 0 {
		t.Errorf("%d trailing bytes after octree stream", buf.Len())
	}
}

func TestRoundTrip(t *testing.T) {
	const depth = 4
	rng := rand.New(rand.NewSource(1))
	ops := append(randomSets(rng, depth, 400, 4), blockSets(rng, depth, 10)...)
	for _, src := range implNames {
		o := buildTree(t, src, depth, ops)
		for _, dst := range implNames {
			var buf bytes.Buffer
			if err := o.Store(&buf); err != nil {
				t.Fatal(err)
			}
			loaded, err := Load(dst, &buf)
			if err != nil {
				t.Fatalf("%s -> %s: %v", src, dst, err)
			}
			if loaded.ImplementationName() != dst {
				t.Errorf("implementation got %s, want %s", loaded.ImplementationName(), dst)
			}
			assertSameVoxels(t, loaded, o)
			if got, want := loaded.NodeCount(), o.NodeCount(); got != want {
				t.Errorf("%s -> %s node count got %d, want %d", src, dst, got, want)
			}
		}
	}
}

func TestMergeCanonicalization(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, name := range implNames {
		for _, ops := range [][]setOp{
			randomSets(rng, 4, 2000, 2),
			blockSets(rng, 4, 40),
		} {
			o := buildTree(t, name, 4, ops)
			checkCanonical(t, o)
		}
	}
}

func TestBackendEquivalence(t *testing.T) {
	const depth = 5
	rng := rand.New(rand.NewSource(3))
	ops := append(blockSets(rng, depth, 30), randomSets(rng, depth, 3000, 3)...)
	ref := buildTree(t, "NODE", depth, ops)
	refDigest, err := Digest(ref)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range implNames[1:] {
		o := buildTree(t, name, depth, ops)
		assertSameVoxels(t, o, ref)
		// Canonical trees are unique, so the streams must match byte for byte.
		d, err := Digest(o)
		if err != nil {
			t.Fatal(err)
		}
		if d != refDigest {
			t.Errorf("%s digest differs from NODE digest", name)
		}
	}
}

func TestSetMergesToSingleLeaf(t *testing.T) {
	for _, name := range implNames {
		o, err := New(name, 3)
		if err != nil {
			t.Fatal(err)
		}
		if err := o.Set(5, 3, 3, 3); err != nil {
			t.Fatal(err)
		}
		if got := o.NodeCount(); got != 25 {
			t.Errorf("%s node count after one set got %d, want 25", name, got)
		}
		if err := o.Set(0, 3, 3, 3); err != nil {
			t.Fatal(err)
		}
		if got := o.NodeCount(); got != 1 {
			t.Errorf("%s node count after reset got %d, want 1", name, got)
		}
		forEachVoxel(3, func(x, y, z int) {
			if err := o.Set(2, x, y, z); err != nil {
				t.Fatal(err)
			}
		})
		if got := o.NodeCount(); got != 1 {
			t.Errorf("%s node count after filling got %d, want 1", name, got)
		}
		if got := o.Get(7, 0, 4); got.Type != 2 {
			t.Errorf("%s filled type got %d, want 2", name, got.Type)
		}
	}
}

func TestFreeListReuse(t *testing.T) {
	for _, name := range []string{"PACKED", "BIGPACKED"} {
		o, err := New(name, 3)
		if err != nil {
			t.Fatal(err)
		}
		usage := func() Usage { return o.Implementation().(UsageReporter).Usage() }
		if err := o.Set(5, 3, 3, 3); err != nil {
			t.Fatal(err)
		}
		slots := usage().Slots
		if slots != 25 || usage().FreeBlocks != 0 {
			t.Fatalf("%s after one set got %+v, want 25 slots and no free blocks", name, usage())
		}
		if err := o.Set(0, 3, 3, 3); err != nil {
			t.Fatal(err)
		}
		if got := usage().FreeBlocks; got != 3 {
			t.Errorf("%s free blocks after merge got %d, want 3", name, got)
		}
		if err := o.Set(4, 6, 1, 7); err != nil {
			t.Fatal(err)
		}
		if got := usage(); got.Slots != slots || got.FreeBlocks != 0 {
			t.Errorf("%s after reuse got %d slots %d free blocks, want %d slots and no free blocks",
				name, got.Slots, got.FreeBlocks, slots)
		}
		if got := o.Get(6, 1, 7).Type; got != 4 {
			t.Errorf("%s reused voxel got type %d, want 4", name, got)
		}
		if got := o.Get(3, 3, 3).Type; got != 0 {
			t.Errorf("%s reset voxel got type %d, want 0", name, got)
		}
	}
}

func TestDataWords(t *testing.T) {
	for _, test := range []struct {
		name     string
		keepData bool
	}{
		{"NODE", true},
		{"BIGPACKED", true},
		{"PACKED", false},
	} {
		o, err := New(test.name, 3)
		if err != nil {
			t.Fatal(err)
		}
		if err := o.SetNode(Node{Type: 7, Data: -3}, 1, 2, 3); err != nil {
			t.Fatal(err)
		}
		if err := o.SetNode(Node{Type: 7, Data: 1 << 20}, 1, 2, 2); err != nil {
			t.Fatal(err)
		}
		want := Node{Type: 7}
		if test.keepData {
			want.Data = -3
		}
		if got := o.Get(1, 2, 3); got != want {
			t.Errorf("%s got %+v, want %+v", test.name, got, want)
		}
		// Round trip through NODE keeps whatever data the backend had.
		var buf bytes.Buffer
		if err := o.Store(&buf); err != nil {
			t.Fatal(err)
		}
		loaded, err := Load("NODE", &buf)
		if err != nil {
			t.Fatal(err)
		}
		if got := loaded.Get(1, 2, 3); got != want {
			t.Errorf("%s reloaded got %+v, want %+v", test.name, got, want)
		}
	}
}

func TestCapacityFaultAndMigration(t *testing.T) {
	impl, err := NewPacked(4, 64)
	if err != nil {
		t.Fatal(err)
	}
	o := FromImplementation(impl)
	if o.ImplementationName() != "PACKED" {
		t.Fatalf("implementation got %q, want PACKED", o.ImplementationName())
	}
	if err := o.Set(1, 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	before, err := Digest(o)
	if err != nil {
		t.Fatal(err)
	}
	err = o.Set(3, 15, 15, 15)
	if !errors.Is(err, ErrTooBig) {
		t.Fatalf("expected capacity fault, got %v", err)
	}
	var tooBig *TooBigError
	if !errors.As(err, &tooBig) || tooBig.Limit != 64 || tooBig.Implementation != "PACKED" {
		t.Errorf("fault got %+v, want PACKED limit 64", tooBig)
	}
	after, err := Digest(o)
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Error("failed set modified the tree")
	}

	if err := o.SwitchImplementation("BIGPACKED"); err != nil {
		t.Fatal(err)
	}
	if o.ImplementationName() != "BIGPACKED" {
		t.Errorf("implementation got %q, want BIGPACKED", o.ImplementationName())
	}
	if err := o.Set(3, 15, 15, 15); err != nil {
		t.Fatalf("retry after migration: %v", err)
	}
	for _, test := range []struct{ x, y, z, want int }{
		{0, 0, 0, 1}, {15, 15, 15, 3}, {8, 8, 8, 0}, {1, 0, 0, 0},
	} {
		if got := o.Get(test.x, test.y, test.z).Type; got != test.want {
			t.Errorf("(%d,%d,%d) got %d, want %d", test.x, test.y, test.z, got, test.want)
		}
	}
}

func TestSwitchImplementationPreservesTree(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	ops := randomSets(rng, 4, 500, 3)
	o := buildTree(t, "PACKED", 4, ops)
	ref := buildTree(t, "NODE", 4, ops)
	want, _ := Digest(ref)
	for _, name := range []string{"NODE", "BIGPACKED", "PACKED", "PACKED"} {
		if err := o.SwitchImplementation(name); err != nil {
			t.Fatal(err)
		}
		got, err := Digest(o)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("digest changed after switching to %s", name)
		}
	}
	if err := o.SwitchImplementation("FANCY"); !errors.Is(err, ErrUnknownImplementation) {
		t.Errorf("unknown implementation got %v, want ErrUnknownImplementation", err)
	}
}

func TestSetCube(t *testing.T) {
	const depth = 4
	side := 1 << depth
	rng := rand.New(rand.NewSource(5))
	type cubeOp struct {
		cubeDepth int
		types     []int
		x, y, z   int
	}
	var ops []cubeOp
	for i := 0; i < 30; i++ {
		cd := rng.Intn(4)
		cs := 1 << cd
		types := make([]int, cs*cs*cs)
		uniform := rng.Intn(3) == 0
		for j := range types {
			if uniform {
				types[j] = 2
			} else {
				types[j] = rng.Intn(2)
			}
		}
		ops = append(ops, cubeOp{
			cubeDepth: cd, types: types,
			x: rng.Intn(side/cs) * cs, y: rng.Intn(side/cs) * cs, z: rng.Intn(side/cs) * cs,
		})
	}
	var ref *Octree
	var refDigest [DigestSize]byte
	for _, name := range implNames {
		o, err := New(name, depth)
		if err != nil {
			t.Fatal(err)
		}
		byVoxel, _ := New("NODE", depth)
		for _, op := range ops {
			if err := o.SetCube(op.cubeDepth, op.types, op.x, op.y, op.z); err != nil {
				t.Fatal(err)
			}
			cs := 1 << op.cubeDepth
			for cz := 0; cz < cs; cz++ {
				for cy := 0; cy < cs; cy++ {
					for cx := 0; cx < cs; cx++ {
						typ := op.types[cubeIndex(op.cubeDepth, cx, cy, cz)]
						if err := byVoxel.Set(typ, op.x+cx, op.y+cy, op.z+cz); err != nil {
							t.Fatal(err)
						}
					}
				}
			}
		}
		assertSameVoxels(t, o, byVoxel)
		checkCanonical(t, o)
		d, _ := Digest(o)
		if ref == nil {
			ref, refDigest = o, d
		} else if d != refDigest {
			t.Errorf("%s SetCube digest differs from %s", name, ref.ImplementationName())
		}
	}
}

func TestSetCubeValidation(t *testing.T) {
	o, _ := New("PACKED", 3)
	for _, test := range []struct {
		cubeDepth int
		types     []int
		x, y, z   int
		want      error
	}{
		{cubeDepth: 1, types: make([]int, 8), x: 1, want: ErrInvalidCube},
		{cubeDepth: 1, types: make([]int, 7), want: ErrInvalidCube},
		{cubeDepth: 4, types: make([]int, 4096), want: ErrInvalidCube},
		{cubeDepth: 1, types: make([]int, 8), x: 8, want: ErrOutOfBounds},
		{cubeDepth: 0, types: []int{-2}, want: ErrInvalidType},
	} {
		err := o.SetCube(test.cubeDepth, test.types, test.x, test.y, test.z)
		if !errors.Is(err, test.want) {
			t.Errorf("SetCube(%d, len %d, %d,%d,%d) got %v, want %v",
				test.cubeDepth, len(test.types), test.x, test.y, test.z, err, test.want)
		}
	}
	if err := o.Set(1, 0, 8, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Set outside got %v, want ErrOutOfBounds", err)
	}
	if _, err := New("PACKED", 0); !errors.Is(err, ErrInvalidDepth) {
		t.Errorf("depth 0 got %v, want ErrInvalidDepth", err)
	}
}

func TestUpdateCube(t *testing.T) {
	for _, name := range implNames {
		o, _ := New(name, 3)
		if err := o.Set(4, 5, 4, 4); err != nil {
			t.Fatal(err)
		}
		err := o.UpdateCube(2, 4, 4, 4, func(types []int) {
			for i, typ := range types {
				if typ == 0 {
					types[i] = 1
				}
			}
		})
		if err != nil {
			t.Fatal(err)
		}
		if got := o.Get(5, 4, 4).Type; got != 4 {
			t.Errorf("%s kept voxel got %d, want 4", name, got)
		}
		if got := o.Get(7, 7, 7).Type; got != 1 {
			t.Errorf("%s updated voxel got %d, want 1", name, got)
		}
		if got := o.Get(3, 3, 3).Type; got != 0 {
			t.Errorf("%s voxel outside cube got %d, want 0", name, got)
		}
	}
}

func TestEndFinalization(t *testing.T) {
	for _, name := range implNames {
		o, _ := New(name, 2)
		if err := o.Set(3, 0, 0, 0); err != nil {
			t.Fatal(err)
		}
		forEachVoxel(1, func(x, y, z int) {
			if x|y|z == 0 {
				return
			}
			if err := o.Set(AnyType, x, y, z); err != nil {
				t.Fatal(err)
			}
		})
		if got := o.NodeCount(); got != 17 {
			t.Errorf("%s node count before finalization got %d, want 17", name, got)
		}
		o.EndFinalization()
		if got := o.NodeCount(); got != 9 {
			t.Errorf("%s node count after finalization got %d, want 9", name, got)
		}
		if got := o.Get(1, 1, 1).Type; got != 3 {
			t.Errorf("%s finalized AnyType voxel got %d, want 3", name, got)
		}
		if got := o.Get(3, 3, 3).Type; got != 0 {
			t.Errorf("%s untouched voxel got %d, want 0", name, got)
		}
		// A leaf root must survive finalization.
		leaf, _ := New(name, 2)
		leaf.EndFinalization()
		if got := leaf.NodeCount(); got != 1 {
			t.Errorf("%s leaf root node count got %d, want 1", name, got)
		}
	}
}

func TestVisitCoversCube(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	ops := randomSets(rng, 4, 300, 3)
	for _, name := range implNames {
		o := buildTree(t, name, 4, ops)
		volume := 0
		var leaves int64
		o.View().Visit(func(leaf Node, x, y, z, level int) {
			leaves++
			side := 1 << level
			volume += side * side * side
			if got := o.Get(x+side-1, y, z+side/2); got != leaf {
				t.Errorf("%s leaf at (%d,%d,%d) level %d is %+v but voxel inside is %+v", name, x, y, z, level, leaf, got)
			}
		})
		if volume != 16*16*16 {
			t.Errorf("%s leaf volume got %d, want %d", name, volume, 16*16*16)
		}
		// Branches have 8 children, so leaves = 7*branches + 1 and nodes = leaves + branches.
		if nodes := o.NodeCount(); nodes != leaves+(leaves-1)/7 {
			t.Errorf("%s node count got %d for %d leaves", name, nodes, leaves)
		}
	}
}

func BenchmarkPackedSet(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	ops := randomSets(rng, 8, 1<<14, 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buildTree(b, "PACKED", 8, ops)
	}
}
