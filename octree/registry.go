package octree

import (
	"io"
	"math"
	"sync"

	"github.com/pkg/errors"
)

// DefaultImplementation is used when no implementation name is given.
const DefaultImplementation = "PACKED"

// Factory creates and loads one kind of octree backend.
type Factory interface {
	Name() string
	Description() string
	// Create returns an empty tree (all type 0) of the given depth.
	Create(depth int) (Implementation, error)
	// Load reads a tree in wire format. nodeCountHint, when positive, is used to
	// presize storage. Load reads r without buffering.
	Load(r io.Reader, nodeCountHint int64) (Implementation, error)
	// IsOfType reports whether impl was made by this factory.
	IsOfType(impl Implementation) bool
}

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
	// factory names in registration order.
	factoryNames []string
)

// Register adds a factory to the registry, replacing any factory with the same name.
func Register(f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := factories[f.Name()]; !ok {
		factoryNames = append(factoryNames, f.Name())
	}
	factories[f.Name()] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := factories[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownImplementation, "%q", name)
	}
	return f, nil
}

// Factories returns the registered factories in registration order.
func Factories() []Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fs := make([]Factory, len(factoryNames))
	for i, name := range factoryNames {
		fs[i] = factories[name]
	}
	return fs
}

type factory struct {
	name, description string
	create            func(depth int) (Implementation, error)
	load              func(r io.Reader, nodeCountHint int64) (Implementation, error)
	isOfType          func(impl Implementation) bool
}

func (f factory) Name() string                             { return f.name }
func (f factory) Description() string                      { return f.description }
func (f factory) Create(depth int) (Implementation, error) { return f.create(depth) }
func (f factory) IsOfType(impl Implementation) bool        { return f.isOfType(impl) }

func (f factory) Load(r io.Reader, nodeCountHint int64) (Implementation, error) {
	return f.load(r, nodeCountHint)
}

// NewPacked returns the PACKED backend holding at most maxSlots slots.
// maxSlots <= 0 selects DefaultPackedLimit.
func NewPacked(depth, maxSlots int) (Implementation, error) {
	t, err := newPacked32(depth, maxSlots)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func newPacked32(depth, maxSlots int) (*packed[int32], error) {
	if maxSlots <= 0 || maxSlots > DefaultPackedLimit {
		maxSlots = DefaultPackedLimit
	}
	if maxSlots < 9 {
		return nil, errors.Errorf("packed octree limit %d too small", maxSlots)
	}
	return newPacked[int32]("PACKED", depth, 31, maxSlots, false)
}

// NewBigPacked returns the BIGPACKED backend with segments of 1<<segmentShift slots.
// segmentShift 0 selects DefaultSegmentShift; the smallest segment has 8 slots.
func NewBigPacked(depth int, segmentShift uint) (Implementation, error) {
	t, err := newBigPacked(depth, segmentShift)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func newBigPacked(depth int, segmentShift uint) (*packed[int64], error) {
	if segmentShift == 0 {
		segmentShift = DefaultSegmentShift
	}
	if segmentShift < 3 || segmentShift > 40 {
		return nil, errors.Errorf("segment shift %d not in [3,40]", segmentShift)
	}
	return newPacked[int64]("BIGPACKED", depth, segmentShift, math.MaxInt, true)
}

func init() {
	Register(factory{
		name:        "PACKED",
		description: "Packed int32 array. Compact and fast, limited to about 2^31 nodes. Stores block types only.",
		create:      func(depth int) (Implementation, error) { return NewPacked(depth, 0) },
		load: func(r io.Reader, hint int64) (Implementation, error) {
			wr := newWireReader(r)
			depth, err := wr.depth()
			if err != nil {
				return nil, err
			}
			t, err := newPacked32(depth, 0)
			if err != nil {
				return nil, err
			}
			if err := t.load(wr, hint); err != nil {
				return nil, err
			}
			return t, nil
		},
		isOfType: func(impl Implementation) bool {
			_, ok := impl.(*packed[int32])
			return ok
		},
	})
	Register(factory{
		name:        "BIGPACKED",
		description: "Segmented int64 arrays. Twice the memory of PACKED, no practical size limit. Keeps data words.",
		create:      func(depth int) (Implementation, error) { return NewBigPacked(depth, 0) },
		load: func(r io.Reader, hint int64) (Implementation, error) {
			wr := newWireReader(r)
			depth, err := wr.depth()
			if err != nil {
				return nil, err
			}
			t, err := newBigPacked(depth, 0)
			if err != nil {
				return nil, err
			}
			if err := t.load(wr, hint); err != nil {
				return nil, err
			}
			return t, nil
		},
		isOfType: func(impl Implementation) bool {
			_, ok := impl.(*packed[int64])
			return ok
		},
	})
	Register(factory{
		name:        "NODE",
		description: "One heap object per node. Memory hungry, no size limit. Keeps data words.",
		create:      NewNodeTree,
		load: func(r io.Reader, _ int64) (Implementation, error) {
			wr := newWireReader(r)
			depth, err := wr.depth()
			if err != nil {
				return nil, err
			}
			t, err := newNodeTree(depth)
			if err != nil {
				return nil, err
			}
			if err := t.load(wr); err != nil {
				return nil, err
			}
			return t, nil
		},
		isOfType: func(impl Implementation) bool {
			_, ok := impl.(*nodeTree)
			return ok
		},
	})
}
