package voxtrace

import (
	"fmt"
	"math"
	"sync"
)

// Block is what a palette resolves an octree block type to. Traversal only
// needs to know how a block relates to the medium the ray is in and, for
// partial blocks, where its surfaces are.
type Block interface {
	// Air is true for empty space.
	Air() bool
	// Water is true for water, full or partial.
	Water() bool
	// LocalIntersect is true when the block does not fill its voxel and
	// Intersect must be consulted to find its surface.
	LocalIntersect() bool
	// Intersect tests the ray against the block's geometry inside the voxel the ray is in.
	// On a hit the ray is advanced to the surface and its normal set.
	Intersect(r *Ray) bool
	// SameMaterial reports whether crossing from other into this block is not a surface.
	SameMaterial(other Block) bool
}

// Palette maps octree block types to blocks.
type Palette interface {
	Get(typ int) Block
}

// MaterialKind classifies materials for traversal purposes.
type MaterialKind uint8

const (
	KindSolid MaterialKind = iota
	KindAir
	KindWater
)

func (k MaterialKind) String() string {
	switch k {
	case KindSolid:
		return "solid"
	case KindAir:
		return "air"
	case KindWater:
		return "water"
	}
	return fmt.Sprintf("MaterialKind(%d)", uint8(k))
}

// Material is the Block implementation used by BlockPalette.
type Material struct {
	Name string
	Kind MaterialKind
	// Boxes describe the block's shape in unit voxel coordinates.
	// An empty slice means the block fills its voxel.
	Boxes []AABB
	// Color is a hex colour string such as "#7f7f7f", used by the preview renderer.
	Color string
	// Emitter marks light emitting blocks.
	Emitter bool
}

var _ Block = (*Material)(nil)

func (m *Material) Air() bool            { return m.Kind == KindAir }
func (m *Material) Water() bool          { return m.Kind == KindWater }
func (m *Material) LocalIntersect() bool { return len(m.Boxes) > 0 }

// SameMaterial compares by name, so two palette entries with the same name are one medium.
func (m *Material) SameMaterial(other Block) bool {
	o, ok := other.(*Material)
	if !ok {
		return false
	}
	return o == m || o.Name == m.Name
}

// Intersect finds the closest box face and moves the ray onto it.
func (m *Material) Intersect(r *Ray) bool {
	hit := false
	r.T = math.Inf(1)
	for _, box := range m.Boxes {
		if box.Intersect(r) {
			hit = true
			r.T = r.TNext
		}
	}
	if hit {
		r.Advance(r.T)
	}
	return hit
}

// BlockPalette is a concurrency safe Palette. Types never added resolve to an
// opaque material named "unknown".
type BlockPalette struct {
	mu        sync.RWMutex
	materials map[int]*Material
	unknown   *Material
}

// NewBlockPalette returns a palette holding only air at type 0.
func NewBlockPalette() *BlockPalette {
	return &BlockPalette{
		materials: map[int]*Material{
			0: {Name: "air", Kind: KindAir, Color: "#00000000"},
		},
		unknown: &Material{Name: "unknown", Kind: KindSolid, Color: "#ff00ff"},
	}
}

// Set registers m under typ, replacing any previous material.
func (p *BlockPalette) Set(typ int, m *Material) {
	if m == nil {
		panic("nil material")
	}
	p.mu.Lock()
	p.materials[typ] = m
	p.mu.Unlock()
}

// Get returns the block for typ. It never returns nil.
func (p *BlockPalette) Get(typ int) Block {
	return p.Material(typ)
}

// Material is Get without the interface conversion.
func (p *BlockPalette) Material(typ int) *Material {
	p.mu.RLock()
	m, ok := p.materials[typ]
	p.mu.RUnlock()
	if !ok {
		return p.unknown
	}
	return m
}

// IsEmitter reports whether typ is a registered emitting material.
func (p *BlockPalette) IsEmitter(typ int) bool {
	return p.Material(typ).Emitter
}

// DefaultPalette returns a small palette used by the command line tools:
// 0 air, 1 stone, 2 water, 3 glowstone (emitter), 4 slab (bottom half), 5 gold.
func DefaultPalette() *BlockPalette {
	p := NewBlockPalette()
	p.Set(1, &Material{Name: "stone", Color: "#7d7d7d"})
	p.Set(2, &Material{Name: "water", Kind: KindWater, Color: "#3f76e4"})
	p.Set(3, &Material{Name: "glowstone", Color: "#f9d49c", Emitter: true})
	p.Set(4, &Material{Name: "slab", Color: "#a0a0a0", Boxes: []AABB{NewAABB(0, 1, 0, 0.5, 0, 1)}})
	p.Set(5, &Material{Name: "gold", Color: "#fcee4b"})
	return p
}
