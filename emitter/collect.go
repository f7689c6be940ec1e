package emitter

import "github.com/soypat/voxtrace/octree"

// Collect builds a prepared grid from every voxel of view whose block type
// satisfies isEmitter. Uniform leaves are expanded voxel by voxel.
func Collect(view octree.View, isEmitter func(typ int) bool, cellSize int) (*Grid, error) {
	g, err := NewGrid(cellSize)
	if err != nil {
		return nil, err
	}
	view.Visit(func(leaf octree.Node, x, y, z, level int) {
		if !isEmitter(leaf.Type) {
			return
		}
		side := 1 << level
		for dy := 0; dy < side; dy++ {
			for dx := 0; dx < side; dx++ {
				for dz := 0; dz < side; dz++ {
					g.AddEmitter(Position{X: x + dx, Y: y + dy, Z: z + dz, Block: leaf.Type})
				}
			}
		}
	})
	g.Prepare()
	logger.Infof("collected %d emitters", g.Len())
	return g, nil
}
