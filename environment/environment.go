package environment

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// Shape selects the volume resource points are scattered in.
type Shape string

const (
	// ShapeCube scatters points in [-size, size] on every axis.
	ShapeCube Shape = "cube"

	// ShapeHalfSpace keeps the cube extent on x and z but only scatters points
	// above the ground plane, y in [0, size].
	ShapeHalfSpace Shape = "half_space"
)

func (s Shape) IsValid() bool {
	return s == ShapeCube || s == ShapeHalfSpace
}

// PCG stream selector for the point scatter. The growth engine uses its own
// stream so both sequences stay independent for the same seed.
const scatterStream = 0x656e7669726f6e

// Sphere is an occupancy zone.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// Environment is the resource field a tree grows into: a point cloud that is
// depleted as the tree occupies space, plus the bud id allocator of the run.
type Environment struct {
	Points []mgl32.Vec3
	BudIDs BudIDGenerator

	partition SpatialPartition
}

// Generate scatters count points uniformly inside the volume described by
// shape and size. The same seed always yields the same points.
func Generate(seed uint64, size float32, count int, shape Shape) *Environment {
	rng := rand.New(rand.NewPCG(seed, scatterStream))

	minY := -size
	if shape == ShapeHalfSpace {
		minY = 0
	}

	points := make([]mgl32.Vec3, 0, max(count, 0))
	for i := 0; i < count; i++ {
		x := -size + rng.Float32()*2*size
		y := minY + rng.Float32()*(size-minY)
		z := -size + rng.Float32()*2*size
		points = append(points, mgl32.Vec3{x, y, z})
	}

	return New(points, mgl32.Vec3{-size, minY, -size}, mgl32.Vec3{size, size, size})
}

// New returns an environment over the given points. min and max bound the
// spatial index; points outside of them are still indexed.
func New(points []mgl32.Vec3, min mgl32.Vec3, max mgl32.Vec3) *Environment {
	env := &Environment{
		Points:    points,
		partition: NewRegularGrid(min, max, 0),
	}
	env.partition.Build(env.Points)
	return env
}

// NextBudID returns the id of a newly created bud.
func (e *Environment) NextBudID() BudID {
	return e.BudIDs.New()
}

// BudCount returns the number of buds created so far.
func (e *Environment) BudCount() int {
	return e.BudIDs.Count()
}

// PointsWithin calls fn for every point at distance <= radius from center.
// Points are visited in a deterministic order.
func (e *Environment) PointsWithin(center mgl32.Vec3, radius float32, fn func(index int, point mgl32.Vec3)) {
	extent := mgl32.Vec3{radius, radius, radius}
	radiusSqr := radius * radius

	for _, idx := range e.partition.GetRegion(center.Sub(extent), center.Add(extent)) {
		p := e.Points[idx]
		if p.Sub(center).LenSqr() <= radiusSqr {
			fn(idx, p)
		}
	}
}

// ClearOccupancyZones removes every point lying inside at least one of the
// zones and returns how many were removed. Remaining points keep their
// relative order.
func (e *Environment) ClearOccupancyZones(zones []Sphere) int {
	if len(zones) == 0 || len(e.Points) == 0 {
		return 0
	}

	removed := make([]bool, len(e.Points))
	removedCount := 0
	for _, zone := range zones {
		e.PointsWithin(zone.Center, zone.Radius, func(index int, _ mgl32.Vec3) {
			if !removed[index] {
				removed[index] = true
				removedCount++
			}
		})
	}

	if removedCount == 0 {
		return 0
	}

	kept := e.Points[:0]
	for i, p := range e.Points {
		if !removed[i] {
			kept = append(kept, p)
		}
	}
	e.Points = kept
	e.partition.Build(e.Points)
	return removedCount
}

func (e *Environment) GetDebugInfo() SpatialDebugInfo {
	return e.partition.GetDebugInfo()
}
