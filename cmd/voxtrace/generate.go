package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/emitter"
	"github.com/soypat/voxtrace/octree"
	"github.com/soypat/voxtrace/voxelize"
	"github.com/urfave/cli"
	"gonum.org/v1/gonum/spatial/r3"
)

// Block types of voxtrace.DefaultPalette.
const (
	air = iota
	stone
	water
	glowstone
	slab
	gold
)

func generate(ctx *cli.Context) error {
	setupLogging(ctx)
	if ctx.NArg() != 1 {
		return errors.New("missing output file argument")
	}
	out := ctx.Args().First()

	o, err := octree.New(ctx.String("impl"), ctx.Int("depth"))
	if err != nil {
		return err
	}
	opts := voxelize.DefaultOptions()
	opts.Workers = ctx.Int("workers")
	rng := rand.New(rand.NewSource(ctx.Int64("seed")))

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := demoScene(sctx, o, rng, ctx.Int("spheres"), opts); err != nil {
		return err
	}
	o.EndFinalization()
	if err := octree.SaveFile(out, o); err != nil {
		return err
	}
	logger.Noticef("saved %s: depth %d, %s, %d nodes", out, o.Depth(), o.ImplementationName(), o.NodeCount())

	if path := ctx.String("emitters"); path != "" {
		palette := voxtrace.DefaultPalette()
		grid, err := emitter.Collect(o.View(), palette.IsEmitter, ctx.Int("cell-size"))
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "creating emitter grid file")
		}
		defer f.Close()
		if err := grid.Store(f); err != nil {
			return err
		}
		logger.Noticef("saved %s: %d emitters", path, grid.Len())
	}
	return nil
}

type fill struct {
	shape voxelize.SDF
	typ   int
}

// demoScene voxelizes a ground plane with a water pool, a row of slabs, random
// stone and gold spheres and a floating glowstone sphere.
func demoScene(ctx context.Context, o *octree.Octree, rng *rand.Rand, spheres int, opts voxelize.Options) error {
	s := float64(int(1) << o.Depth())
	ground := s / 8
	var err error
	shape := func(sdf voxelize.SDF, serr error) voxelize.SDF {
		if serr != nil && err == nil {
			err = serr
		}
		return sdf
	}
	pool := r3.Vec{X: 0.75 * s, Y: ground - s/32, Z: 0.25 * s}
	fills := []fill{
		{shape(voxelize.Box(r3.Vec{X: s / 2, Y: ground / 2, Z: s / 2}, r3.Vec{X: s, Y: ground, Z: s}, 0)), stone},
		{shape(voxelize.Box(pool, r3.Vec{X: s / 4, Y: s / 16, Z: s / 4}, 0)), water},
		{shape(voxelize.Box(r3.Vec{X: s / 2, Y: ground + 0.5, Z: 0.8 * s}, r3.Vec{X: s / 2, Y: 1, Z: 1}, 0)), slab},
		{shape(voxelize.Sphere(r3.Vec{X: s / 2, Y: 0.7 * s, Z: s / 2}, s/24)), glowstone},
	}
	pillar := shape(voxelize.Cylinder(r3.Vec{X: 0.2 * s, Y: ground + s/8, Z: 0.2 * s}, s/4, s/24, 0))
	if err == nil {
		fills = append(fills, fill{shape(voxelize.Shell(pillar, 2)), gold})
	}
	for i := 0; i < spheres; i++ {
		radius := s/40 + rng.Float64()*s/16
		c := r3.Vec{
			X: radius + rng.Float64()*(s-2*radius),
			Y: ground + radius,
			Z: radius + rng.Float64()*(s-2*radius),
		}
		typ := stone
		if rng.Intn(3) == 0 {
			typ = gold
		}
		fills = append(fills, fill{shape(voxelize.Sphere(c, radius)), typ})
	}
	if err != nil {
		return errors.Wrap(err, "building demo scene")
	}

	var voxels int
	for _, f := range fills {
		stats, err := voxelize.Fill(ctx, o, f.shape, f.typ, opts)
		if err != nil {
			return err
		}
		voxels += stats.Voxels
	}
	logger.Infof("voxelized %d shapes, %d voxels", len(fills), voxels)
	return nil
}
