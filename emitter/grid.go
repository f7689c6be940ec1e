// Package emitter indexes light emitting voxels in a uniform grid so that a
// path tracer can sample emitters near a point.
package emitter

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/log"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var logger = log.New("emitter")

var ErrInvalidCellSize = errors.New("cell size must be positive")

// Position is an emitting voxel and its block type.
type Position struct {
	X, Y, Z int
	Block   int
}

// Sample returns a uniformly random point on the surface of the unit voxel.
func (p Position) Sample(rnd *rand.Rand) r3.Vec {
	return p.SampleShape(rnd, nil)
}

// SampleShape samples a random box of shape, given in unit voxel coordinates.
// An empty shape is the full voxel.
func (p Position) SampleShape(rnd *rand.Rand, shape []voxtrace.AABB) r3.Vec {
	box := voxtrace.NewAABB(0, 1, 0, 1, 0, 1)
	if len(shape) > 0 {
		box = shape[rnd.Intn(len(shape))]
	}
	return r3.Add(box.Sample(rnd), p.origin())
}

// Center returns the centre of the voxel.
func (p Position) Center() r3.Vec {
	return r3.Add(p.origin(), r3.Vec{X: 0.5, Y: 0.5, Z: 0.5})
}

func (p Position) origin() r3.Vec {
	return r3.Vec{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// Grid buckets emitters into cubic cells. Every emitter is listed in its own cell
// and the 26 cells around it, so a lookup in one cell finds every emitter
// within roughly one cell size.
//
// Emitters are added first; Prepare must be called before any query. A
// prepared grid is safe for concurrent queries.
type Grid struct {
	cellSize  int
	positions []Position

	// positionIndexes concatenates the emitter indexes of every cell.
	positionIndexes []int32
	// cells holds a start offset into positionIndexes and a count per cell.
	cells []int32

	min, max     [3]int
	offset, size [3]int
	prepared     bool

	kd *kdtree.Tree
}

// NewGrid returns an empty grid with cells cellSize voxels wide.
func NewGrid(cellSize int) (*Grid, error) {
	if cellSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidCellSize, "got %d", cellSize)
	}
	return &Grid{cellSize: cellSize}, nil
}

func (g *Grid) CellSize() int { return g.cellSize }

// Len returns the number of emitters.
func (g *Grid) Len() int { return len(g.positions) }

// AddEmitter adds an emitter. The grid must be prepared again afterwards.
func (g *Grid) AddEmitter(p Position) {
	c := [3]int{p.X, p.Y, p.Z}
	if len(g.positions) == 0 {
		g.min, g.max = c, c
	}
	for i := range c {
		g.min[i] = min(g.min[i], c[i])
		g.max[i] = max(g.max[i], c[i])
	}
	g.positions = append(g.positions, p)
	g.prepared = false
}

func (g *Grid) cellOf(x, y, z int) [3]int {
	return [3]int{
		voxtrace.FloorDiv(x, g.cellSize),
		voxtrace.FloorDiv(y, g.cellSize),
		voxtrace.FloorDiv(z, g.cellSize),
	}
}

func (g *Grid) inBounds(c [3]int) bool {
	for i := range c {
		if c[i] < g.offset[i] || c[i] >= g.offset[i]+g.size[i] {
			return false
		}
	}
	return true
}

func (g *Grid) cellIndex(c [3]int) int {
	return ((c[1]-g.offset[1])*g.size[0]+(c[0]-g.offset[0]))*g.size[2] + (c[2] - g.offset[2])
}

func (g *Grid) numCells() int { return g.size[0] * g.size[1] * g.size[2] }

// Prepare builds the cell lists and the nearest emitter index.
func (g *Grid) Prepare() {
	g.offset, g.size = [3]int{}, [3]int{}
	if len(g.positions) > 0 {
		lo := g.cellOf(g.min[0], g.min[1], g.min[2])
		hi := g.cellOf(g.max[0], g.max[1], g.max[2])
		for i := range lo {
			g.offset[i] = lo[i] - 1
			g.size[i] = hi[i] - lo[i] + 3
		}
	}
	perCell := make([][]int32, g.numCells())
	total := 0
	for i, p := range g.positions {
		c := g.cellOf(p.X, p.Y, p.Z)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				for dz := -1; dz <= 1; dz++ {
					n := [3]int{c[0] + dx, c[1] + dy, c[2] + dz}
					if !g.inBounds(n) {
						continue
					}
					idx := g.cellIndex(n)
					perCell[idx] = append(perCell[idx], int32(i))
					total++
				}
			}
		}
	}
	g.positionIndexes = make([]int32, 0, total)
	g.cells = make([]int32, 2*len(perCell))
	for i, list := range perCell {
		g.cells[2*i] = int32(len(g.positionIndexes))
		g.cells[2*i+1] = int32(len(list))
		g.positionIndexes = append(g.positionIndexes, list...)
	}
	g.buildIndex()
	g.prepared = true
	logger.Debugf("prepared emitter grid: %d emitters, %d cells, %d entries", len(g.positions), len(perCell), total)
}

func (g *Grid) mustBePrepared() {
	if !g.prepared {
		panic("emitter: grid queried before Prepare")
	}
}

// cell returns the emitter indexes listed for the cell containing voxel (x,y,z).
func (g *Grid) cell(x, y, z int) []int32 {
	g.mustBePrepared()
	c := g.cellOf(x, y, z)
	if !g.inBounds(c) {
		return nil
	}
	i := g.cellIndex(c)
	start, n := g.cells[2*i], g.cells[2*i+1]
	return g.positionIndexes[start : start+n]
}

// SampleEmitterPosition picks a uniformly random emitter from the cell of voxel
// (x,y,z). It returns false when the cell has no emitters.
func (g *Grid) SampleEmitterPosition(x, y, z int, rnd *rand.Rand) (Position, bool) {
	idx := g.cell(x, y, z)
	if len(idx) == 0 {
		return Position{}, false
	}
	return g.positions[idx[rnd.Intn(len(idx))]], true
}

// EmitterPositions lists the emitters of the cell of voxel (x,y,z).
func (g *Grid) EmitterPositions(x, y, z int) []Position {
	idx := g.cell(x, y, z)
	ps := make([]Position, len(idx))
	for i, j := range idx {
		ps[i] = g.positions[j]
	}
	return ps
}

// Positions returns every emitter in insertion order.
func (g *Grid) Positions() []Position {
	return append([]Position(nil), g.positions...)
}
