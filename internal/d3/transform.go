package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Rigid is a rotation about the origin followed by a translation.
// Rigid motions preserve distances, so a signed distance evaluated through
// one stays exact.
type Rigid struct {
	Rotation    r3.Rotation
	Translation r3.Vec
}

// NewRigid returns the motion rotating by q and then moving to position.
// q is normalized; the zero rotation is the identity.
func NewRigid(position r3.Vec, q r3.Rotation) Rigid {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		q = r3.Rotation{Real: 1}
	} else {
		q = r3.Rotation{Real: q.Real / n, Imag: q.Imag / n, Jmag: q.Jmag / n, Kmag: q.Kmag / n}
	}
	return Rigid{Rotation: q, Translation: position}
}

// Apply moves p.
func (t Rigid) Apply(p r3.Vec) r3.Vec {
	return r3.Add(t.Rotation.Rotate(p), t.Translation)
}

// Inv returns the motion undoing t.
func (t Rigid) Inv() Rigid {
	q := t.Rotation
	conj := r3.Rotation{Real: q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
	return Rigid{Rotation: conj, Translation: r3.Scale(-1, conj.Rotate(t.Translation))}
}

// ApplyBox returns the bounding box of the moved corners of b.
func (t Rigid) ApplyBox(b r3.Box) r3.Box {
	var moved Box
	for i, v := range b.Vertices() {
		c := t.Apply(v)
		if i == 0 {
			moved = Box{Min: c, Max: c}
		}
		moved = moved.Include(c)
	}
	return r3.Box(moved)
}
