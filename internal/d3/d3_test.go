package d3

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestRigid(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	q := r3.Rotation{Real: 2, Kmag: 2} // 90° about z once normalized
	tf := NewRigid(r3.Vec{X: 1, Y: 2, Z: 3}, q)
	if got, want := tf.Apply(r3.Vec{X: 1}), (r3.Vec{X: 1, Y: 3, Z: 3}); !EqualWithin(got, want, 1e-12) {
		t.Errorf("got %v, want %v", got, want)
	}
	inv := tf.Inv()
	space := Box{Min: Elem(-10), Max: Elem(10)}
	for _, p := range space.RandomSet(rng, 64) {
		if got := inv.Apply(tf.Apply(p)); !EqualWithin(got, p, 1e-9) {
			t.Errorf("round trip of %v got %v", p, got)
		}
	}
	id := NewRigid(r3.Vec{}, r3.Rotation{})
	if p := (r3.Vec{X: 1, Y: -2, Z: 3}); id.Apply(p) != p || id.Inv().Apply(p) != p {
		t.Error("zero rotation is not the identity")
	}
	bb := tf.ApplyBox(r3.Box{Max: r3.Vec{X: 2, Y: 1, Z: 1}})
	want := r3.Box{Min: r3.Vec{X: 0, Y: 2, Z: 3}, Max: r3.Vec{X: 1, Y: 4, Z: 4}}
	if !EqualWithin(bb.Min, want.Min, 1e-12) || !EqualWithin(bb.Max, want.Max, 1e-12) {
		t.Errorf("moved box got %v, want %v", bb, want)
	}
}

func TestBox(t *testing.T) {
	b := CenteredBox(r3.Vec{X: 1}, r3.Vec{X: 2, Y: -1, Z: 4})
	if b.Min != (r3.Vec{X: 0, Z: -2}) || b.Max != (r3.Vec{X: 2, Z: 2}) {
		t.Errorf("got %v, want negative size clamped to zero", b)
	}
	b = b.Include(r3.Vec{Y: 5}).Extend(Box{Min: Elem(-1), Max: Elem(-1)})
	if got, want := b.Size(), (r3.Vec{X: 3, Y: 6, Z: 4}); got != want {
		t.Errorf("size got %v, want %v", got, want)
	}
	if got, want := b.Center(), (r3.Vec{X: 0.5, Y: 2, Z: 0}); got != want {
		t.Errorf("center got %v, want %v", got, want)
	}
	if Max(b.Size()) != 6 || Min(b.Size()) != 3 {
		t.Errorf("got max %v min %v", Max(b.Size()), Min(b.Size()))
	}
}
