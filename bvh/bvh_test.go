package bvh

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/internal/d3"
	"github.com/soypat/voxtrace/primitive"
	"gonum.org/v1/gonum/spatial/r3"
)

// randomSpheres returns n spheres that do not overlap.
func randomSpheres(rng *rand.Rand, n int, extent float64) []primitive.Primitive {
	space := d3.Box{Min: d3.Elem(-extent), Max: d3.Elem(extent)}
	var spheres []*primitive.Sphere
	for len(spheres) < n {
		c := space.Random(rng)
		radius := 0.5 + 1.5*rng.Float64()
		overlaps := false
		for _, s := range spheres {
			if r3.Norm(r3.Sub(c, s.Center)) < radius+s.Radius {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		s, err := primitive.NewSphere(c, radius, len(spheres))
		if err != nil {
			panic(err)
		}
		spheres = append(spheres, s)
	}
	prims := make([]primitive.Primitive, n)
	for i, s := range spheres {
		prims[i] = s
	}
	return prims
}

func randomRay(rng *rand.Rand, prims []primitive.Primitive, extent float64) voxtrace.Ray {
	space := d3.Box{Min: d3.Elem(-extent), Max: d3.Elem(extent)}
	o := space.Random(rng)
	if rng.Intn(2) == 0 {
		return voxtrace.NewRay(o, d3.RandomDirection(rng))
	}
	// Aim at a primitive so that plenty of rays hit something.
	target := prims[rng.Intn(len(prims))].Bounds().Center()
	return voxtrace.NewRay(o, r3.Unit(r3.Sub(target, o)))
}

func testBuilderNames(t *testing.T) []string {
	var names []string
	for _, b := range Builders() {
		names = append(names, b.Name())
	}
	if len(names) < 2 {
		t.Fatalf("got builders %v, want MIDPOINT and SAH", names)
	}
	return names
}

func checkTree(t *testing.T, n Node) {
	t.Helper()
	switch n := n.(type) {
	case *Group:
		if union := n.Child1.Bounds().Expand(n.Child2.Bounds()); !n.Bounds().Equals(union, 0) {
			t.Errorf("group bounds got %+v, want union of children %+v", n.Bounds(), union)
		}
		checkTree(t, n.Child1)
		checkTree(t, n.Child2)
		if n.Size() != n.Child1.Size()+n.Child2.Size() {
			t.Errorf("group size got %d, want %d", n.Size(), n.Child1.Size()+n.Child2.Size())
		}
	case *Leaf:
		if n.Size() >= SplitLimit || n.Size() == 0 {
			t.Errorf("leaf holds %d primitives", n.Size())
		}
		if union := primitive.Bounds(n.Primitives); !n.Bounds().Equals(union, 0) {
			t.Errorf("leaf bounds got %+v, want union of primitives %+v", n.Bounds(), union)
		}
		for _, p := range n.Primitives {
			if !n.Bounds().Contains(p.Bounds()) {
				t.Errorf("leaf %+v does not contain primitive %+v", n.Bounds(), p.Bounds())
			}
		}
	}
}

func checkPacked(t *testing.T, b *BVH) {
	t.Helper()
	aabb := func(i int) voxtrace.AABB {
		bx := b.box(i)
		return voxtrace.NewAABB(float64(bx.Min.X), float64(bx.Max.X), float64(bx.Min.Y), float64(bx.Max.Y), float64(bx.Min.Z), float64(bx.Max.Z))
	}
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		box := aabb(i)
		if w := b.packed[i]; w <= 0 {
			for _, p := range b.leaves[-w] {
				if !box.Contains(p.Bounds()) {
					t.Errorf("packed leaf %+v does not contain primitive %+v", box, p.Bounds())
				}
			}
			continue
		}
		for _, c := range []int{i + nodeWords, int(b.packed[i])} {
			if !box.Contains(aabb(c)) {
				t.Errorf("packed node %d %+v does not contain child %d %+v", i, box, c, aabb(c))
			}
			stack = append(stack, c)
		}
	}
}

func TestBuildContainment(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	prims := randomSpheres(rng, 300, 50)
	for _, name := range testBuilderNames(t) {
		b, _ := Lookup(name)
		root := b.Build(prims)
		if root.Size() != len(prims) {
			t.Errorf("%s: root size got %d, want %d", name, root.Size(), len(prims))
		}
		checkTree(t, root)
		bvh := Pack(root)
		checkPacked(t, bvh)
		st := bvh.Stats()
		if st.Primitives != len(prims) || st.Nodes != 2*st.Leaves-1 || len(st.LeafDepths) != st.Leaves {
			t.Errorf("%s: inconsistent stats %+v", name, st)
		}
		if !bvh.Bounds().Contains(primitive.Bounds(prims)) {
			t.Errorf("%s: packed root %+v does not contain the scene", name, bvh.Bounds())
		}
	}
}

func TestClosestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	prims := randomSpheres(rng, 200, 40)
	for _, name := range testBuilderNames(t) {
		bvh, err := New(name, prims)
		if err != nil {
			t.Fatal(err)
		}
		hits := 0
		for i := 0; i < 1000; i++ {
			want := randomRay(rng, prims, 60)
			got := want
			wantHit := primitive.ClosestBruteForce(prims, &want)
			gotHit := bvh.ClosestIntersection(&got)
			if gotHit != wantHit {
				t.Fatalf("%s: ray %v dir %v: hit got %v, want %v", name, want.O, want.D, gotHit, wantHit)
			}
			if !wantHit {
				continue
			}
			hits++
			if math.Abs(got.T-want.T) > 1e-9 || got.CurrentMaterial != want.CurrentMaterial {
				t.Errorf("%s: ray %v dir %v: got t=%v sphere %d, want t=%v sphere %d",
					name, want.O, want.D, got.T, got.CurrentMaterial, want.T, want.CurrentMaterial)
			}
		}
		if hits < 100 {
			t.Errorf("%s: only %d of 1000 rays hit, test is too weak", name, hits)
		}
	}
}

func TestAnyIffClosest(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	prims := randomSpheres(rng, 150, 30)
	for _, name := range testBuilderNames(t) {
		bvh, _ := New(name, prims)
		for i := 0; i < 1000; i++ {
			r1 := randomRay(rng, prims, 45)
			r2 := r1
			closest := bvh.ClosestIntersection(&r1)
			anyHit := bvh.AnyIntersection(&r2)
			if closest != anyHit {
				t.Fatalf("%s: ray %v dir %v: closest %v, any %v", name, r1.O, r1.D, closest, anyHit)
			}
		}
	}
}

func TestTwoCubes(t *testing.T) {
	first := primitive.Cube(r3.Vec{}, 1, 1)
	second := primitive.Cube(r3.Vec{X: 10}, 1, 2)
	for _, name := range testBuilderNames(t) {
		for _, test := range []struct {
			prims []primitive.Primitive
			t     float64
			mat   int
		}{
			{[]primitive.Primitive{first, second}, 4.5, 1},
			{[]primitive.Primitive{second}, 14.5, 2},
		} {
			bvh, err := New(name, test.prims)
			if err != nil {
				t.Fatal(err)
			}
			r := voxtrace.NewRay(r3.Vec{X: -5}, r3.Vec{X: 1})
			if !bvh.ClosestIntersection(&r) {
				t.Fatalf("%s: ray missed %d cubes", name, len(test.prims))
			}
			if math.Abs(r.T-test.t) > 1e-9 || r.CurrentMaterial != test.mat {
				t.Errorf("%s: hit got t=%v material %d, want t=%v material %d", name, r.T, r.CurrentMaterial, test.t, test.mat)
			}
		}
	}
}

func TestRayInFacePlane(t *testing.T) {
	// The ray runs along the bottom faces of a row of cubes.
	var prims []primitive.Primitive
	for i := 0; i < 8; i++ {
		prims = append(prims, primitive.Cube(r3.Vec{X: float64(2 * i), Y: 0.5}, 1, i+1))
	}
	for _, name := range testBuilderNames(t) {
		bvh, err := New(name, prims)
		if err != nil {
			t.Fatal(err)
		}
		want := voxtrace.NewRay(r3.Vec{X: -5}, r3.Vec{X: 1})
		got, anyRay := want, want
		wantHit := primitive.ClosestBruteForce(prims, &want)
		if !wantHit {
			t.Fatal("brute force missed the face plane ray")
		}
		if !bvh.ClosestIntersection(&got) || got.T != want.T || got.CurrentMaterial != want.CurrentMaterial {
			t.Errorf("%s: got t=%v material %d, want t=%v material %d", name, got.T, got.CurrentMaterial, want.T, want.CurrentMaterial)
		}
		if !bvh.AnyIntersection(&anyRay) {
			t.Errorf("%s: any hit missed the face plane ray", name)
		}
	}
}

func TestRespectsRayT(t *testing.T) {
	prims := []primitive.Primitive{primitive.Cube(r3.Vec{X: 10}, 1, 1)}
	for i := 0; i < 8; i++ {
		prims = append(prims, primitive.Cube(r3.Vec{X: 10, Y: float64(3 * (i + 1))}, 1, 1))
	}
	bvh, _ := New("", prims)
	r := voxtrace.NewRay(r3.Vec{}, r3.Vec{X: 1})
	r.T = 5
	if bvh.ClosestIntersection(&r) || bvh.AnyIntersection(&r) {
		t.Errorf("hit beyond r.T reported, T=%v", r.T)
	}
	if r.T != 5 {
		t.Errorf("r.T modified on a miss: %v", r.T)
	}
}

func TestEmpty(t *testing.T) {
	bvh, err := New("MIDPOINT", nil)
	if err != nil {
		t.Fatal(err)
	}
	r := voxtrace.NewRay(r3.Vec{}, r3.Vec{X: 1})
	if !bvh.IsEmpty() || bvh.ClosestIntersection(&r) || bvh.AnyIntersection(&r) {
		t.Error("empty BVH reported a hit")
	}
	if st := bvh.Stats(); st.Nodes != 0 {
		t.Errorf("empty stats got %+v", st)
	}
	if _, err := New("OCTREE", nil); !errors.Is(err, ErrUnknownBuilder) {
		t.Errorf("unknown builder got error %v, want %v", err, ErrUnknownBuilder)
	}
}

func TestSplitMidpoint(t *testing.T) {
	s, _ := primitive.NewSphere(r3.Vec{X: 1, Y: 2, Z: 3}, 1, 0)
	chunk := make([]item, 6)
	for i := range chunk {
		chunk[i] = newItem(s)
	}
	// Centroids on the midpoint are not below it, so the first index wins.
	if got := splitMidpoint(chunk); got != 1 {
		t.Errorf("split of identical centroids got %d, want 1", got)
	}
	// x wins ties between equally long axes.
	chunk = chunk[:0]
	for _, c := range []r3.Vec{{}, {X: 1, Y: 1, Z: 1}, {X: 2, Y: 2, Z: 2}, {X: 3, Y: 3, Z: 3}} {
		chunk = append(chunk, newItem(primitive.Cube(c, 0.5, 0)))
	}
	if got := splitMidpoint(chunk); got != 2 {
		t.Errorf("split got %d, want 2", got)
	}
}

func TestSAHParallelBuild(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	var prims []primitive.Primitive
	space := d3.Box{Min: d3.Elem(-100), Max: d3.Elem(100)}
	for len(prims) < sahParallelMin+500 {
		prims = append(prims, primitive.Cube(space.Random(rng), 0.1+rng.Float64(), len(prims)))
	}
	b, _ := Lookup("SAH")
	root := b.Build(prims)
	checkTree(t, root)
	bvh := Pack(root)
	checkPacked(t, bvh)
	for i := 0; i < 200; i++ {
		want := randomRay(rng, prims, 120)
		got := want
		if primitive.ClosestBruteForce(prims, &want) != bvh.ClosestIntersection(&got) || got.T != want.T {
			t.Fatalf("ray %v dir %v: got t=%v, want t=%v", want.O, want.D, got.T, want.T)
		}
	}
}

func TestOutwardRounding(t *testing.T) {
	for _, v := range []float64{0.1, -0.1, 1e10 + 1, -3.3333333333, 5, 0} {
		if lo := roundDown(v); float64(lo) > v {
			t.Errorf("roundDown(%v) = %v is above", v, lo)
		}
		if hi := roundUp(v); float64(hi) < v {
			t.Errorf("roundUp(%v) = %v is below", v, hi)
		}
	}
	if roundDown(5) != 5 || roundUp(5) != 5 {
		t.Error("exact values must not move")
	}
}

func BenchmarkClosestIntersection(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	prims := randomSpheres(rng, 2000, 100)
	bvh, _ := New("SAH", prims)
	rays := make([]voxtrace.Ray, 1024)
	for i := range rays {
		rays[i] = randomRay(rng, prims, 120)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := rays[i%len(rays)]
		bvh.ClosestIntersection(&r)
	}
}
