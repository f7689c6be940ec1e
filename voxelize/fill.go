package voxelize

import (
	"context"
	"math"
	"runtime"

	"github.com/alitto/pond/v2"
	"github.com/pkg/errors"
	"github.com/soypat/voxtrace/internal/d3"
	"github.com/soypat/voxtrace/log"
	"github.com/soypat/voxtrace/octree"
	"gonum.org/v1/gonum/spatial/r3"
)

var logger = log.New("voxelize")

// Options configures Fill.
type Options struct {
	// Workers is the number of goroutines evaluating chunks. Zero uses every CPU.
	Workers int
	// ChunkDepth sets the side of the chunks, 1<<ChunkDepth voxels, that are
	// evaluated and written as a unit. It is capped by the octree depth and
	// octree.MaxCubeDepth.
	ChunkDepth int
	// Replace overwrites every voxel inside the shape. Otherwise only air
	// (type 0) is overwritten.
	Replace bool
	// Fallback is the implementation the octree migrates to when its backend runs
	// out of capacity. Empty disables migration.
	Fallback string
}

// DefaultOptions returns the options used by the command line tools.
func DefaultOptions() Options {
	return Options{ChunkDepth: 4, Replace: true, Fallback: "BIGPACKED"}
}

// Stats reports the work done by Fill.
type Stats struct {
	Chunks int // chunks overlapping the shape bounds
	Empty  int // chunks found entirely outside the shape
	Solid  int // chunks found entirely inside the shape
	Voxels int // voxels inside the shape
	// Migrated is set when the octree switched implementation.
	Migrated bool
}

type chunk struct {
	x, y, z int
	// inside lists the chunk voxels in octree cube order. Nil means the whole
	// chunk is inside.
	inside []bool
	empty  bool
}

// Fill sets every voxel of o inside s to typ. Chunks are evaluated in parallel
// and written one at a time. When the backend runs out of capacity the octree
// is switched to opts.Fallback and the write is retried.
func Fill(ctx context.Context, o *octree.Octree, s SDF, typ int, opts Options) (Stats, error) {
	var stats Stats
	if typ < 0 || typ == octree.AnyType {
		return stats, errors.Wrapf(octree.ErrInvalidType, "fill type %d", typ)
	}
	depth := min(max(opts.ChunkDepth, 0), o.Depth(), octree.MaxCubeDepth)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	side := 1 << depth
	lo, hi, ok := chunkRange(s.Bounds(), o.Depth(), depth)
	if !ok {
		return stats, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan chunk, workers)
	pool := pond.NewPool(workers)
	go func() {
		for cy := lo[1]; cy <= hi[1]; cy++ {
			for cx := lo[0]; cx <= hi[0]; cx++ {
				for cz := lo[2]; cz <= hi[2]; cz++ {
					x, y, z := cx*side, cy*side, cz*side
					pool.Submit(func() {
						if ctx.Err() != nil {
							results <- chunk{empty: true}
							return
						}
						results <- evaluate(s, depth, x, y, z)
					})
				}
			}
		}
		pool.StopAndWait()
		close(results)
	}()

	var err error
	for c := range results {
		if err != nil {
			continue // drain
		}
		if err = ctx.Err(); err != nil {
			cancel()
			continue
		}
		stats.Chunks++
		switch {
		case c.empty:
			stats.Empty++
			continue
		case c.inside == nil:
			stats.Solid++
			stats.Voxels += side * side * side
		default:
			for _, in := range c.inside {
				if in {
					stats.Voxels++
				}
			}
		}
		err = write(o, depth, c, typ, opts, &stats)
		if err != nil {
			cancel()
		}
	}
	if err != nil {
		return stats, err
	}
	logger.Infof("filled %d voxels of type %d: %d chunks, %d empty, %d solid", stats.Voxels, typ, stats.Chunks, stats.Empty, stats.Solid)
	return stats, nil
}

// chunkRange returns the range of chunk coordinates overlapping bb inside an
// octree of the given depth.
func chunkRange(bb r3.Box, treeDepth, chunkDepth int) (lo, hi [3]int, ok bool) {
	size := 1 << treeDepth
	last := (size >> chunkDepth) - 1
	mins := [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	maxs := [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	for i := range lo {
		if maxs[i] < 0 || mins[i] >= float64(size) || math.IsNaN(mins[i]) || math.IsNaN(maxs[i]) {
			return lo, hi, false
		}
		lo[i] = max(0, int(math.Floor(mins[i]))) >> chunkDepth
		hi[i] = min(size-1, int(math.Floor(maxs[i]))) >> chunkDepth
		lo[i], hi[i] = min(lo[i], last), min(hi[i], last)
	}
	return lo, hi, true
}

// evaluate classifies the voxels of the chunk at (x,y,z). The distance at the
// chunk centre decides chunks that lie entirely on one side of the surface.
func evaluate(s SDF, depth, x, y, z int) chunk {
	side := 1 << depth
	c := chunk{x: x, y: y, z: z}
	half := 0.5 * float64(side)
	center := r3.Vec{X: float64(x) + half, Y: float64(y) + half, Z: float64(z) + half}
	// Voxel centres lie within this distance of the chunk centre.
	reach := math.Sqrt(3) * (half - 0.5)
	d := s.Evaluate(center)
	switch {
	case d > reach:
		c.empty = true
		return c
	case d <= -reach:
		return c
	}
	c.inside = make([]bool, side*side*side)
	hit := false
	for cz := 0; cz < side; cz++ {
		for cy := 0; cy < side; cy++ {
			for cx := 0; cx < side; cx++ {
				p := r3.Add(r3.Vec{X: float64(x + cx), Y: float64(y + cy), Z: float64(z + cz)}, d3.Elem(0.5))
				if s.Evaluate(p) <= 0 {
					c.inside[cz<<(2*depth)+cy<<depth+cx] = true
					hit = true
				}
			}
		}
	}
	c.empty = !hit
	return c
}

func write(o *octree.Octree, depth int, c chunk, typ int, opts Options, stats *Stats) error {
	update := func(types []int) {
		for i, t := range types {
			if (c.inside == nil || c.inside[i]) && (opts.Replace || t == 0) {
				types[i] = typ
			}
		}
	}
	err := o.UpdateCube(depth, c.x, c.y, c.z, update)
	if !errors.Is(err, octree.ErrTooBig) || opts.Fallback == "" || o.ImplementationName() == opts.Fallback {
		return err
	}
	logger.Noticef("%v, migrating to %s", err, opts.Fallback)
	if err := o.SwitchImplementation(opts.Fallback); err != nil {
		return err
	}
	stats.Migrated = true
	return o.UpdateCube(depth, c.x, c.y, c.z, update)
}
