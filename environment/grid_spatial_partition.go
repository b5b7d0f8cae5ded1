package environment

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Regular Grid Spatial Partition
//
// A uniformly sub-divided 3D grid implementing the SpatialPartition interface.
// The particularities are:
//   - the bounds are fixed at creation. Points outside of them are clamped into
//     the border cells so they are still found by region queries that reach
//     the border.
//   - cells store point indices in insertion order, which keeps region queries
//     deterministic for a given point slice.

// DefaultGridCellsPerAxis is the number of cells used along the longest axis
// when no resolution is given.
const DefaultGridCellsPerAxis = 32

type RegularGrid struct {
	Resolution float32
	PointCount int
	Min        mgl32.Vec3
	Max        mgl32.Vec3
	Counts     [3]int
	Cells      [][]int32
}

func NewRegularGrid(min mgl32.Vec3, max mgl32.Vec3, resolution float32) *RegularGrid {
	if resolution <= 0 {
		longest := math32.Max(max[0]-min[0], math32.Max(max[1]-min[1], max[2]-min[2]))
		resolution = longest / DefaultGridCellsPerAxis
	}
	if resolution <= 0 {
		resolution = 1
	}

	grid := &RegularGrid{
		Resolution: resolution,
		Min:        min,
		Max:        max,
	}

	for axis := 0; axis < 3; axis++ {
		count := int(math32.Ceil((max[axis] - min[axis]) / resolution))
		if count < 1 {
			count = 1
		}
		grid.Counts[axis] = count
	}

	grid.Cells = make([][]int32, grid.Counts[0]*grid.Counts[1]*grid.Counts[2])
	return grid
}

func (grid *RegularGrid) Build(points []mgl32.Vec3) {
	for i := range grid.Cells {
		grid.Cells[i] = grid.Cells[i][:0]
	}

	for i, p := range points {
		cell := grid.cellIndex(grid.cellCoords(p))
		grid.Cells[cell] = append(grid.Cells[cell], int32(i))
	}
	grid.PointCount = len(points)
}

// GetRegion returns the indices of every point stored in cells overlapping
// the [min, max] box. Points close to the box but outside of it can be
// returned too: callers filter on exact distance.
func (grid *RegularGrid) GetRegion(min mgl32.Vec3, max mgl32.Vec3) []int {
	if min[0] > grid.Max[0] || min[1] > grid.Max[1] || min[2] > grid.Max[2] ||
		max[0] < grid.Min[0] || max[1] < grid.Min[1] || max[2] < grid.Min[2] {
		return nil
	}

	lo := grid.cellCoords(min)
	hi := grid.cellCoords(max)

	var result []int
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				for _, idx := range grid.Cells[grid.cellIndex([3]int{x, y, z})] {
					result = append(result, int(idx))
				}
			}
		}
	}
	return result
}

func (grid *RegularGrid) GetDebugInfo() SpatialDebugInfo {
	result := SpatialDebugInfo{
		Resolution: grid.Resolution,
		CellCounts: grid.Counts,
		PointCount: grid.PointCount,
		MinPoint:   grid.Min,
		MaxPoint:   grid.Max,
		Occupancy:  make([]uint32, len(grid.Cells)),
	}

	for i, cell := range grid.Cells {
		result.Occupancy[i] = uint32(len(cell))
	}
	return result
}

func (grid *RegularGrid) cellCoords(p mgl32.Vec3) [3]int {
	var coords [3]int
	for axis := 0; axis < 3; axis++ {
		c := int(math32.Floor((p[axis] - grid.Min[axis]) / grid.Resolution))
		if c < 0 {
			c = 0
		}
		if c >= grid.Counts[axis] {
			c = grid.Counts[axis] - 1
		}
		coords[axis] = c
	}
	return coords
}

func (grid *RegularGrid) cellIndex(c [3]int) int {
	return (c[2]*grid.Counts[1]+c[1])*grid.Counts[0] + c[0]
}
