package render

import (
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/bvh"
	"github.com/soypat/voxtrace/octree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Scene is a voxel world plus free-standing entities.
type Scene struct {
	// World is traced first. Nil renders entities only.
	World *octree.View
	// Palette maps block types and entity materials to colours.
	Palette *voxtrace.BlockPalette
	// Entities may be nil.
	Entities *bvh.BVH
}

// Hit is the closest surface found along a ray.
type Hit struct {
	Distance float64
	Normal   r3.Vec
	Material int
	// Entity is set when the hit came from the BVH.
	Entity bool
}

// Trace finds the closest surface along r. The world is marched first and the
// distance it reaches bounds the entity query.
func (s *Scene) Trace(r voxtrace.Ray) (Hit, bool) {
	var hit Hit
	found := false
	if s.World != nil {
		w := r
		if s.World.EnterBlock(&w, s.palette()) {
			hit = Hit{Distance: w.Distance, Normal: w.N, Material: w.CurrentMaterial}
			found = true
		}
	}
	if s.Entities != nil {
		e := r
		if found {
			e.T = hit.Distance
		}
		if s.Entities.ClosestIntersection(&e) {
			hit = Hit{Distance: e.T, Normal: e.N, Material: e.CurrentMaterial, Entity: true}
			found = true
		}
	}
	return hit, found
}

var defaultPalette = voxtrace.DefaultPalette()

func (s *Scene) palette() *voxtrace.BlockPalette {
	if s.Palette == nil {
		return defaultPalette
	}
	return s.Palette
}

// shader is the per worker flat shading state.
type shader struct {
	palette *voxtrace.BlockPalette
	light   r3.Vec
	ambient float64
	colors  map[int]fauxgl.Color
}

func (sh *shader) color(typ int) fauxgl.Color {
	c, ok := sh.colors[typ]
	if !ok {
		c = fauxgl.HexColor(sh.palette.Material(typ).Color)
		sh.colors[typ] = c
	}
	return c
}

// shade lights the hit with one directional light and no shadows.
func (sh *shader) shade(h Hit, d r3.Vec) fauxgl.Color {
	n := h.Normal
	if r3.Dot(n, d) > 0 {
		n = r3.Scale(-1, n)
	}
	diffuse := math.Max(0, r3.Dot(n, sh.light))
	return sh.color(h.Material).MulScalar(sh.ambient + (1-sh.ambient)*diffuse).Opaque()
}
