package bvh

import (
	"cmp"
	"slices"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/pkg/errors"
	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/log"
	"github.com/soypat/voxtrace/primitive"
)

var logger = log.New("bvh")

// DefaultBuilder is used when no builder name is given.
const DefaultBuilder = "SAH"

var ErrUnknownBuilder = errors.New("unknown BVH builder")

// Builder constructs the node tree over a primitive slice, which is left
// untouched. An empty slice builds a nil tree.
type Builder interface {
	Name() string
	Description() string
	Build(prims []primitive.Primitive) Node
}

var (
	registryMu   sync.RWMutex
	builders     = map[string]Builder{}
	builderNames []string
)

// Register adds a builder, replacing any builder with the same name.
func Register(b Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := builders[b.Name()]; !ok {
		builderNames = append(builderNames, b.Name())
	}
	builders[b.Name()] = b
}

// Lookup returns the builder registered under name.
func Lookup(name string) (Builder, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := builders[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBuilder, "%q", name)
	}
	return b, nil
}

// Builders returns the registered builders in registration order.
func Builders() []Builder {
	registryMu.RLock()
	defer registryMu.RUnlock()
	bs := make([]Builder, len(builderNames))
	for i, name := range builderNames {
		bs[i] = builders[name]
	}
	return bs
}

// New builds and packs a hierarchy over prims with the named builder.
// An empty name selects DefaultBuilder.
func New(builderName string, prims []primitive.Primitive) (*BVH, error) {
	if builderName == "" {
		builderName = DefaultBuilder
	}
	b, err := Lookup(builderName)
	if err != nil {
		return nil, err
	}
	bvh := Pack(b.Build(prims))
	logger.Infof("built %s BVH over %d primitives with depth %d", b.Name(), len(prims), bvh.depth)
	return bvh, nil
}

type builder struct {
	name, description string
	split             func(chunk []item) int
}

func (b builder) Name() string        { return b.name }
func (b builder) Description() string { return b.description }

type action uint8

const (
	actionPush action = iota
	actionMerge
)

// Build runs the chunk splitting loop with explicit stacks: a push action pops
// a chunk and either makes it a leaf or splits it, pushing a merge and two
// more pushes; a merge joins the two most recent nodes into a group.
func (b builder) Build(prims []primitive.Primitive) Node {
	if len(prims) == 0 {
		return nil
	}
	items := make([]item, len(prims))
	for i, p := range prims {
		items[i] = newItem(p)
	}
	var (
		nodes   []Node
		actions = []action{actionPush}
		chunks  = [][]item{items}
	)
	for len(actions) > 0 {
		act := actions[len(actions)-1]
		actions = actions[:len(actions)-1]
		if act == actionMerge {
			n := len(nodes)
			nodes = append(nodes[:n-2], NewGroup(nodes[n-1], nodes[n-2]))
			continue
		}
		chunk := chunks[len(chunks)-1]
		chunks = chunks[:len(chunks)-1]
		if len(chunk) < SplitLimit {
			nodes = append(nodes, newLeaf(chunk))
			continue
		}
		split := b.split(chunk)
		// The right half is pushed last so it is built first, which leaves
		// the left node on top of the stack at merge time.
		actions = append(actions, actionMerge, actionPush, actionPush)
		chunks = append(chunks, chunk[:split], chunk[split:])
	}
	return nodes[0]
}

// item caches the bounds and centroid of a primitive during construction.
type item struct {
	p primitive.Primitive
	b voxtrace.AABB
	c [3]float64
}

func newItem(p primitive.Primitive) item {
	b := p.Bounds()
	return item{p: p, b: b, c: [3]float64{
		b.Xmin + (b.Xmax-b.Xmin)/2,
		b.Ymin + (b.Ymax-b.Ymin)/2,
		b.Zmin + (b.Zmax-b.Zmin)/2,
	}}
}

func newLeaf(chunk []item) *Leaf {
	prims := make([]primitive.Primitive, len(chunk))
	b := voxtrace.EmptyAABB()
	for i, it := range chunk {
		prims[i] = it.p
		b = b.Expand(it.b)
	}
	return &Leaf{Primitives: prims, bounds: b}
}

func chunkBounds(chunk []item) voxtrace.AABB {
	b := voxtrace.EmptyAABB()
	for _, it := range chunk {
		b = b.Expand(it.b)
	}
	return b
}

func sortByCentroid(chunk []item, axis int) {
	slices.SortStableFunc(chunk, func(a, b item) int {
		return cmp.Compare(a.c[axis], b.c[axis])
	})
}

// splitMidpoint sorts the chunk along the longest axis of its bounds and splits
// at the first centroid that is not below the midpoint.
func splitMidpoint(chunk []item) int {
	bb := chunkBounds(chunk)
	xl, yl, zl := bb.Xmax-bb.Xmin, bb.Ymax-bb.Ymin, bb.Zmax-bb.Zmin
	var axis int
	var mid float64
	switch {
	case xl >= yl && xl >= zl:
		axis, mid = 0, bb.Xmin+xl/2
	case yl >= zl:
		axis, mid = 1, bb.Ymin+yl/2
	default:
		axis, mid = 2, bb.Zmin+zl/2
	}
	sortByCentroid(chunk, axis)
	split := 1
	for ; split < len(chunk); split++ {
		if !(chunk[split].c[axis] < mid) {
			break
		}
	}
	if split == len(chunk) {
		split = len(chunk) / 2
	}
	return split
}

// sahParallelMin is the chunk size from which SAH evaluates its three axes concurrently.
const sahParallelMin = 4096

type sahResult struct {
	cost  float64
	split int
	order []item
}

// sahAxis sorts chunk along axis and finds the split minimising the surface
// area heuristic. Costs are sl[i]*(i+1) + sr[i]*(n-i-1) where sl and sr are the
// surface areas of the boxes left and right of the split after element i.
func sahAxis(chunk []item, axis int) sahResult {
	sortByCentroid(chunk, axis)
	n := len(chunk)
	sl := make([]float64, n)
	sr := make([]float64, n)
	bounds := voxtrace.EmptyAABB()
	for i := 0; i < n-1; i++ {
		bounds = bounds.Expand(chunk[i].b)
		sl[i] = bounds.SurfaceArea
	}
	bounds = voxtrace.EmptyAABB()
	for i := n - 1; i > 0; i-- {
		bounds = bounds.Expand(chunk[i].b)
		sr[i-1] = bounds.SurfaceArea
	}
	res := sahResult{cost: sl[0]*1 + sr[0]*float64(n-1), order: chunk}
	for i := 1; i < n-1; i++ {
		c := sl[i]*float64(i+1) + sr[i]*float64(n-i-1)
		if c < res.cost {
			res.cost, res.split = c, i
		}
	}
	return res
}

// splitSAH picks the cheapest split over all three axes. Ties keep the earlier axis.
// Each axis sorts its own copy of the chunk so the result does not depend on
// evaluation order.
func splitSAH(chunk []item) int {
	var results [3]sahResult
	if len(chunk) < sahParallelMin {
		for axis := range results {
			results[axis] = sahAxis(slices.Clone(chunk), axis)
		}
	} else {
		pool := pond.NewPool(len(results))
		var wg sync.WaitGroup
		for axis := range results {
			wg.Add(1)
			c := slices.Clone(chunk)
			pool.Submit(func() {
				defer wg.Done()
				results[axis] = sahAxis(c, axis)
			})
		}
		wg.Wait()
		pool.StopAndWait()
	}
	best := 0
	for axis := 1; axis < len(results); axis++ {
		if results[axis].cost < results[best].cost {
			best = axis
		}
	}
	copy(chunk, results[best].order)
	return results[best].split + 1
}

func init() {
	Register(builder{
		name:        "MIDPOINT",
		description: "Fast and simple, but not optimal BVH building method.",
		split:       splitMidpoint,
	})
	Register(builder{
		name:        "SAH",
		description: "Slow but nearly optimal BVH building method.",
		split:       splitSAH,
	})
}
