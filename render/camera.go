package render

import (
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/voxtrace"
	"gonum.org/v1/gonum/spatial/r3"
)

// Camera is a pinhole camera.
type Camera struct {
	Eye    fauxgl.Vector // camera position
	Center fauxgl.Vector // view center position
	Up     fauxgl.Vector // up vector
	Fovy   float64       // vertical field of view in degrees
}

// LookAt returns a camera at eye looking at center with a y-up vector.
func LookAt(eye, center fauxgl.Vector, fovy float64) Camera {
	return Camera{Eye: eye, Center: center, Up: fauxgl.V(0, 1, 0), Fovy: fovy}
}

type viewBasis struct {
	eye                   r3.Vec
	forward, right, up    fauxgl.Vector
	halfWidth, halfHeight float64
}

func (c Camera) basis(width, height int) viewBasis {
	forward := c.Center.Sub(c.Eye).Normalize()
	right := forward.Cross(c.Up).Normalize()
	halfHeight := math.Tan(0.5 * c.Fovy * math.Pi / 180)
	return viewBasis{
		eye:        vec(c.Eye),
		forward:    forward,
		right:      right,
		up:         right.Cross(forward),
		halfHeight: halfHeight,
		halfWidth:  halfHeight * float64(width) / float64(height),
	}
}

// ray returns the ray through the centre of pixel (px,py) of a width x height
// image. Row 0 is the top of the image.
func (b *viewBasis) ray(px, py, width, height int) voxtrace.Ray {
	u := (2*(float64(px)+0.5)/float64(width) - 1) * b.halfWidth
	v := (1 - 2*(float64(py)+0.5)/float64(height)) * b.halfHeight
	d := b.forward.Add(b.right.MulScalar(u)).Add(b.up.MulScalar(v)).Normalize()
	return voxtrace.NewRay(b.eye, vec(d))
}

func vec(v fauxgl.Vector) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
