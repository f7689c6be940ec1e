package voxtrace

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestAABBSurfaceArea(t *testing.T) {
	b := NewAABB(0, 1, 0, 2, 0, 3)
	const want = 2 * (2*3 + 1*3 + 1*2)
	if b.SurfaceArea != want {
		t.Errorf("surface area got %v, want %v", b.SurfaceArea, want)
	}
	if got := EmptyAABB().Expand(b); !got.Equals(b, 0) || got.SurfaceArea != want {
		t.Errorf("empty box is not identity for Expand: got %+v, want %+v", got, b)
	}
}

func TestAABBQuickIntersect(t *testing.T) {
	box := NewAABB(-0.5, 0.5, -0.5, 0.5, -0.5, 0.5)
	for _, test := range []struct {
		o, d  r3.Vec
		hit   bool
		tnext float64
	}{
		{o: r3.Vec{X: -5}, d: r3.Vec{X: 1}, hit: true, tnext: 4.5},
		{o: r3.Vec{X: 5}, d: r3.Vec{X: -1}, hit: true, tnext: 4.5},
		{o: r3.Vec{X: -5, Y: 2}, d: r3.Vec{X: 1}, hit: false},
		{o: r3.Vec{X: 5}, d: r3.Vec{X: 1}, hit: false},
		// Origin inside: entry is behind the ray.
		{o: r3.Vec{}, d: r3.Vec{Z: 1}, hit: false},
		{o: r3.Vec{X: -2, Y: -2, Z: -2}, d: r3.Unit(r3.Vec{X: 1, Y: 1, Z: 1}), hit: true, tnext: 1.5 * math.Sqrt(3)},
	} {
		r := NewRay(test.o, test.d)
		got := box.QuickIntersect(&r)
		if got != test.hit {
			t.Errorf("ray %v dir %v: hit got %v, want %v", test.o, test.d, got, test.hit)
			continue
		}
		if got && math.Abs(r.TNext-test.tnext) > 1e-9 {
			t.Errorf("ray %v dir %v: tnext got %v, want %v", test.o, test.d, r.TNext, test.tnext)
		}
	}
	// Must not accept hits beyond the current best.
	r := NewRay(r3.Vec{X: -5}, r3.Vec{X: 1})
	r.T = 4
	if box.QuickIntersect(&r) {
		t.Error("QuickIntersect accepted hit farther than T")
	}
}

func TestAABBHitTest(t *testing.T) {
	box := NewAABB(0, 1, 0, 1, 0, 1)
	inside := NewRay(r3.Vec{X: .5, Y: .5, Z: .5}, r3.Vec{Y: -1})
	if !box.HitTest(&inside) {
		t.Error("HitTest from inside got false, want true")
	}
	behind := NewRay(r3.Vec{X: 2, Y: .5, Z: .5}, r3.Vec{X: 1})
	if box.HitTest(&behind) {
		t.Error("HitTest of box behind ray got true, want false")
	}
}

func TestAABBIntersectLocal(t *testing.T) {
	// Bottom slab of voxel (4,7,2), ray coming straight down onto its top face.
	slab := NewAABB(0, 1, 0, 0.5, 0, 1)
	r := NewRay(r3.Vec{X: 4.25, Y: 7.99, Z: 2.75}, r3.Vec{Y: -1})
	if !slab.Intersect(&r) {
		t.Fatal("expected hit on slab top")
	}
	if math.Abs(r.TNext-0.49) > 1e-9 {
		t.Errorf("tnext got %v, want %v", r.TNext, 0.49)
	}
	if r.N != (r3.Vec{Y: 1}) {
		t.Errorf("normal got %v, want %v", r.N, r3.Vec{Y: 1})
	}
	if math.Abs(r.U-0.25) > 1e-9 || math.Abs(r.V-0.75) > 1e-9 {
		t.Errorf("uv got (%v,%v), want (0.25,0.75)", r.U, r.V)
	}

	// Passing over the slab misses.
	r = NewRay(r3.Vec{X: 4.0, Y: 7.75, Z: 2.5}, r3.Vec{X: 1})
	if slab.Intersect(&r) {
		t.Error("ray above slab reported a hit")
	}
}

func TestAABBRotateTranslate(t *testing.T) {
	b := NewAABB(0, 0.5, 0, 1, 0, 0.25)
	got := b.RotateY()
	want := NewAABB(0.75, 1, 0, 1, 0, 0.5)
	if !got.Equals(want, 1e-12) {
		t.Errorf("RotateY got %+v, want %+v", got, want)
	}
	// Four quarter turns return the original box.
	if back := got.RotateY().RotateY().RotateY(); !back.Equals(b, 1e-12) {
		t.Errorf("four rotations got %+v, want %+v", back, b)
	}
	moved := b.Translate(1, 2, 3)
	if moved.Xmin != 1 || moved.Ymax != 3 || moved.Zmax != 3.25 {
		t.Errorf("Translate got %+v", moved)
	}
	if moved.SurfaceArea != b.SurfaceArea {
		t.Errorf("Translate changed surface area got %v, want %v", moved.SurfaceArea, b.SurfaceArea)
	}
}

func TestAABBSample(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := NewAABB(2, 3, 4, 6, -1, 0)
	const tol = 1e-12
	for i := 0; i < 200; i++ {
		p := b.Sample(rng)
		if !b.Inside(p) {
			t.Fatalf("sample %v outside box %+v", p, b)
		}
		onFace := math.Abs(p.X-b.Xmin) < tol || math.Abs(p.X-b.Xmax) < tol ||
			math.Abs(p.Y-b.Ymin) < tol || math.Abs(p.Y-b.Ymax) < tol ||
			math.Abs(p.Z-b.Zmin) < tol || math.Abs(p.Z-b.Zmax) < tol
		if !onFace {
			t.Fatalf("sample %v not on a face of %+v", p, b)
		}
	}
}

func TestBoundsOf(t *testing.T) {
	b := BoundsOf(r3.Vec{X: 1, Y: -1, Z: 3}, r3.Vec{X: -2, Y: 4, Z: 0})
	want := NewAABB(-2, 1, -1, 4, 0, 3)
	if !b.Equals(want, 0) {
		t.Errorf("BoundsOf got %+v, want %+v", b, want)
	}
	if !b.Contains(NewAABB(0, 1, 0, 1, 0, 1)) {
		t.Error("Contains got false for inner box")
	}
	if b.Contains(NewAABB(0, 2, 0, 1, 0, 1)) {
		t.Error("Contains got true for overlapping box")
	}
}
