package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/fogleman/fauxgl"
	"github.com/pkg/errors"
	"github.com/soypat/voxtrace/bvh"
	"github.com/soypat/voxtrace/octree"
	"github.com/soypat/voxtrace/primitive"
	"github.com/soypat/voxtrace/render"
	"github.com/urfave/cli"
	"gonum.org/v1/gonum/spatial/r3"
)

func preview(ctx *cli.Context) error {
	setupLogging(ctx)
	if ctx.NArg() != 1 {
		return errors.New("missing octree file argument")
	}
	o, err := octree.OpenFile(ctx.Args().First(), "")
	if err != nil {
		return err
	}
	view := o.View()
	s := float64(view.Size())

	eye := fauxgl.V(-0.3*s, 0.8*s, -0.3*s)
	if v := ctx.String("eye"); v != "" {
		if eye, err = parseVector(v); err != nil {
			return err
		}
	}
	center := fauxgl.V(s/2, s/8, s/2)
	if v := ctx.String("look-at"); v != "" {
		if center, err = parseVector(v); err != nil {
			return err
		}
	}

	scene := &render.Scene{World: &view}
	if n := ctx.Int("entities"); n > 0 {
		rng := rand.New(rand.NewSource(1))
		scene.Entities, err = bvh.New(ctx.String("builder"), floatingSpheres(rng, n, s))
		if err != nil {
			return err
		}
	}

	opts := render.DefaultOptions()
	opts.Width = ctx.Int("width")
	opts.Height = ctx.Int("height")
	opts.Supersample = ctx.Int("ss")
	opts.Workers = ctx.Int("workers")

	rctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	img, err := render.Render(rctx, scene, render.LookAt(eye, center, ctx.Float64("fovy")), opts)
	if err != nil {
		return err
	}
	out := ctx.String("out")
	if err := render.SavePNG(out, img); err != nil {
		return err
	}
	logger.Noticef("saved %s", out)
	return nil
}

// floatingSpheres returns n gold spheres above the ground of a scene of side s.
func floatingSpheres(rng *rand.Rand, n int, s float64) []primitive.Primitive {
	prims := make([]primitive.Primitive, 0, n)
	for len(prims) < n {
		c := r3.Vec{X: rng.Float64() * s, Y: s/4 + rng.Float64()*s/2, Z: rng.Float64() * s}
		sphere, err := primitive.NewSphere(c, s/64+rng.Float64()*s/32, gold)
		if err != nil {
			continue
		}
		prims = append(prims, sphere)
	}
	return prims
}

// parseVector parses "x,y,z".
func parseVector(s string) (fauxgl.Vector, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fauxgl.Vector{}, errors.Errorf("vector %q: want x,y,z", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fauxgl.Vector{}, errors.Wrapf(err, "vector %q", s)
		}
		v[i] = f
	}
	return fauxgl.V(v[0], v[1], v[2]), nil
}
