/*

Integer 3D voxel coordinates

*/

package voxtrace

import "gonum.org/v1/gonum/spatial/r3"

// V3i is a 3D integer vector, usually a voxel coordinate.
type V3i [3]int

// VoxelOf returns the voxel containing p.
func VoxelOf(p r3.Vec) V3i {
	return V3i{Floor(p.X), Floor(p.Y), Floor(p.Z)}
}

// InCube reports whether a lies inside the cube [0, 2^depth) on every axis.
func (a V3i) InCube(depth int) bool {
	return uint(a[0])>>depth == 0 && uint(a[1])>>depth == 0 && uint(a[2])>>depth == 0
}
