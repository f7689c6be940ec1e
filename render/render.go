// Package render draws flat shaded previews of voxel scenes.
package render

import (
	"context"
	"image"
	"runtime"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/soypat/voxtrace/log"
)

var logger = log.New("render")

var ErrInvalidSize = errors.New("invalid image size")

// Options configures Render.
type Options struct {
	Width, Height int // output width and height in pixels
	// Supersample renders Supersample² rays per pixel and downsamples.
	Supersample int
	// Workers is the number of goroutines tracing rows. Zero uses every CPU.
	Workers int
	Sky     fauxgl.Color
	// Light is the direction towards the light.
	Light   fauxgl.Vector
	Ambient float64
}

// DefaultOptions returns the options used by the preview command.
func DefaultOptions() Options {
	return Options{
		Width:       640,
		Height:      480,
		Supersample: 1,
		Sky:         fauxgl.HexColor("#FFF8E3"),
		Light:       fauxgl.V(-0.75, 1, 0.25).Normalize(),
		Ambient:     0.3,
	}
}

// Render traces one ray per pixel (per sample when supersampling). Rows are
// traced in parallel and the context is checked before each row.
func Render(ctx context.Context, s *Scene, cam Camera, opts Options) (image.Image, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "%dx%d", opts.Width, opts.Height)
	}
	scale := max(opts.Supersample, 1)
	width, height := opts.Width*scale, opts.Height*scale
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	start := time.Now()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	basis := cam.basis(width, height)
	light := vec(opts.Light.Normalize())
	sky := opts.Sky.NRGBA()

	pool := pond.NewPool(workers)
	for py := 0; py < height; py++ {
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			sh := shader{palette: s.palette(), light: light, ambient: opts.Ambient, colors: make(map[int]fauxgl.Color)}
			for px := 0; px < width; px++ {
				r := basis.ray(px, py, width, height)
				hit, ok := s.Trace(r)
				if !ok {
					img.SetNRGBA(px, py, sky)
					continue
				}
				img.SetNRGBA(px, py, sh.shade(hit, r.D).NRGBA())
			}
		})
	}
	pool.StopAndWait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out image.Image = img
	if scale > 1 {
		// downsample image for antialiasing
		out = resize.Resize(uint(opts.Width), uint(opts.Height), img, resize.Bilinear)
	}
	logger.Infof("rendered %dx%d (%d samples per pixel) in %v", opts.Width, opts.Height, scale*scale, time.Since(start))
	return out, nil
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) error {
	return errors.Wrapf(fauxgl.SavePNG(path, img), "saving %s", path)
}
