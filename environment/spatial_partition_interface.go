package environment

import "github.com/go-gl/mathgl/mgl32"

type SpatialDebugInfo struct {
	Resolution float32
	CellCounts [3]int
	PointCount int
	MinPoint   mgl32.Vec3
	MaxPoint   mgl32.Vec3
	Occupancy  []uint32
}

// SpatialPartition indexes environment points by position. Indices refer to
// the slice the partition was built from.
type SpatialPartition interface {
	Build(points []mgl32.Vec3)
	GetRegion(min mgl32.Vec3, max mgl32.Vec3) []int

	// debug stuff:
	GetDebugInfo() SpatialDebugInfo
}
