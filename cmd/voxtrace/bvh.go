package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/bvh"
	"github.com/soypat/voxtrace/primitive"
	"github.com/urfave/cli"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const bvhExtent = 1000.0

func bvhStats(ctx *cli.Context) error {
	setupLogging(ctx)
	n := ctx.Int("n")
	if n <= 0 {
		return errors.Errorf("invalid primitive count %d", n)
	}
	rng := rand.New(rand.NewSource(ctx.Int64("seed")))
	prims := randomPrimitives(rng, n)
	rays := make([]voxtrace.Ray, max(ctx.Int("rays"), 0))
	for i := range rays {
		rays[i] = randomRay(rng)
	}

	builders := bvh.Builders()
	if name := ctx.String("builder"); name != "" {
		b, err := bvh.Lookup(name)
		if err != nil {
			return err
		}
		builders = []bvh.Builder{b}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Builder", "Build time", "Nodes", "Leaves", "Max depth", "Max leaf", "SAH area", "Trace time", "Hits"})
	var depths []int
	for _, b := range builders {
		start := time.Now()
		tree := bvh.Pack(b.Build(prims))
		buildTime := time.Since(start)

		start = time.Now()
		hits := 0
		for _, r := range rays {
			if tree.ClosestIntersection(&r) {
				hits++
			}
		}
		traceTime := time.Since(start)

		st := tree.Stats()
		if depths == nil {
			depths = st.LeafDepths
		}
		table.Append([]string{
			b.Name(),
			buildTime.String(),
			fmt.Sprintf("%d", st.Nodes),
			fmt.Sprintf("%d", st.Leaves),
			fmt.Sprintf("%d", st.MaxDepth),
			fmt.Sprintf("%d", st.MaxLeafSize),
			fmt.Sprintf("%.2f", st.SurfaceArea),
			traceTime.String(),
			fmt.Sprintf("%d", hits),
		})
	}
	table.Render()
	logger.Noticef("BVH statistics over %d primitives, %d rays\n%s", n, len(rays), buf.String())

	if path := ctx.String("plot"); path != "" {
		if err := plotLeafDepths(path, builders[0].Name(), depths); err != nil {
			return err
		}
		logger.Noticef("saved %s", path)
	}
	return nil
}

// randomPrimitives scatters spheres, boxes and triangles in a cube of side 2*bvhExtent.
func randomPrimitives(rng *rand.Rand, n int) []primitive.Primitive {
	prims := make([]primitive.Primitive, 0, n)
	point := func() r3.Vec {
		return r3.Vec{
			X: (2*rng.Float64() - 1) * bvhExtent,
			Y: (2*rng.Float64() - 1) * bvhExtent,
			Z: (2*rng.Float64() - 1) * bvhExtent,
		}
	}
	for len(prims) < n {
		c := point()
		size := 1 + 9*rng.Float64()
		var p primitive.Primitive
		var err error
		switch rng.Intn(3) {
		case 0:
			p, err = primitive.NewSphere(c, size, len(prims))
		case 1:
			p = primitive.Cube(c, size, len(prims))
		default:
			edge := func() r3.Vec { return r3.Scale(size, r3.Unit(r3.Sub(point(), c))) }
			p, err = primitive.NewTriangle(c, r3.Add(c, edge()), r3.Add(c, edge()), len(prims))
		}
		if err != nil {
			continue
		}
		prims = append(prims, p)
	}
	return prims
}

func randomRay(rng *rand.Rand) voxtrace.Ray {
	o := r3.Vec{
		X: (2*rng.Float64() - 1) * bvhExtent,
		Y: (2*rng.Float64() - 1) * bvhExtent,
		Z: (2*rng.Float64() - 1) * bvhExtent,
	}
	d := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
	return voxtrace.NewRay(o, r3.Unit(d))
}

func plotLeafDepths(path, builder string, depths []int) error {
	values := make(plotter.Values, len(depths))
	maxDepth := 0
	for i, d := range depths {
		values[i] = float64(d)
		maxDepth = max(maxDepth, d)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s leaf depths", builder)
	p.X.Label.Text = "depth"
	p.Y.Label.Text = "leaves"
	h, err := plotter.NewHist(values, max(maxDepth, 1))
	if err != nil {
		return errors.Wrap(err, "building histogram")
	}
	p.Add(h)
	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, path), "saving %s", path)
}
