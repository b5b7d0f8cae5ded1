package growth

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sapling-labs/arbor/environment"
	"github.com/sapling-labs/arbor/geom"
)

// BudLocalEnvironment is what a bud perceives during one iteration.
type BudLocalEnvironment struct {
	OptimalGrowthDirection mgl32.Vec3
	LightExposure          float32
	Resource               float32

	// SubtreeSize is the number of live metamers carried by a Shoot bud.
	SubtreeSize int

	// Associated is the number of environment points attributed to the bud.
	Associated int
}

// localEnvironment is the per-iteration scratch state. Bud records are indexed
// by bud id, node records by arena index.
type localEnvironment struct {
	buds []BudLocalEnvironment
	live []bool

	nodeExposure []float32
	nodeResource []float32
	nodeSize     []int
}

func (s *Simulation) computeLocalEnvironment() *localEnvironment {
	nodeCount := s.graph.Len()
	le := &localEnvironment{
		buds:         make([]BudLocalEnvironment, s.env.BudCount()),
		live:         s.graph.liveNodes(),
		nodeExposure: make([]float32, nodeCount),
		nodeResource: make([]float32, nodeCount),
		nodeSize:     make([]int, nodeCount),
	}

	s.associatePoints(le)
	s.computeLight(le)
	s.distributeResource(le)
	return le
}

// occupancyZones returns one sphere per live metamer carrying a Dormant bud.
func (s *Simulation) occupancyZones(live []bool) []environment.Sphere {
	var zones []environment.Sphere
	for i, node := range s.graph.Nodes {
		if !live[i] {
			continue
		}
		if node.Buds[MainBud].Fate == Dormant || node.Buds[AxillaryBud].Fate == Dormant {
			zones = append(zones, environment.Sphere{
				Center: node.Position,
				Radius: s.conf.OccupancyRadiusCoef * node.Length,
			})
		}
	}
	return zones
}

// associatePoints attributes every environment point to the closest Dormant
// bud perceiving it. Buds at the same distance are drawn from uniformly.
func (s *Simulation) associatePoints(le *localEnvironment) {
	points := s.env.Points
	best := make([]float32, len(points))
	owners := make([][]environment.BudID, len(points))
	origins := make([]mgl32.Vec3, len(le.buds))

	for i, node := range s.graph.Nodes {
		if !le.live[i] {
			continue
		}

		radius := s.conf.BudPerceptionDistanceCoef * node.Length
		for _, bud := range node.Buds {
			le.buds[bud.ID].OptimalGrowthDirection = bud.Direction
			if bud.Fate != Dormant {
				continue
			}

			origins[bud.ID] = node.Position
			axis := geom.SafeNormalize(bud.Direction)
			s.env.PointsWithin(node.Position, radius, func(p int, point mgl32.Vec3) {
				offset := point.Sub(node.Position)
				if !geom.InCone(offset, axis, s.conf.BudPerceptionAngle, radius) {
					return
				}

				d := offset.LenSqr()
				switch {
				case len(owners[p]) == 0 || d < best[p]:
					owners[p] = append(owners[p][:0], bud.ID)
					best[p] = d
				case d == best[p]:
					owners[p] = append(owners[p], bud.ID)
				}
			})
		}
	}

	sums := make([]mgl32.Vec3, len(le.buds))
	for p, candidates := range owners {
		var id environment.BudID
		switch len(candidates) {
		case 0:
			continue
		case 1:
			id = candidates[0]
		default:
			id = candidates[s.rng.IntN(len(candidates))]
		}

		sums[id] = sums[id].Add(points[p].Sub(origins[id]).Normalize())
		le.buds[id].Associated++
	}

	for id := range le.buds {
		if le.buds[id].Associated > 0 {
			info := &le.buds[id]
			info.OptimalGrowthDirection = geom.NormalizeOr(sums[id], info.OptimalGrowthDirection)
		}
	}
}

// computeLight fills light exposure and subtree sizes bottom-up.
func (s *Simulation) computeLight(le *localEnvironment) {
	shadows := s.nodeShadows(le.live)

	for i := s.graph.Len() - 1; i >= 0; i-- {
		if !le.live[i] {
			continue
		}

		size := 1
		var exposure float32
		for _, bud := range s.graph.Nodes[i].Buds {
			info := &le.buds[bud.ID]
			switch bud.Fate {
			case Dormant:
				if info.Associated > 0 {
					info.LightExposure = math32.Max(s.conf.FullLightExposure-shadows[i], 0)
				}
			case Shoot:
				info.LightExposure = le.nodeExposure[bud.Child]
				info.SubtreeSize = le.nodeSize[bud.Child]
				size += info.SubtreeSize
			case Dead:
			default:
				panic(unknownFate(bud.Fate))
			}
			exposure += info.LightExposure
		}

		le.nodeExposure[i] = exposure
		le.nodeSize[i] = size
	}
}

// nodeShadows returns the shadow received by every live metamer from the live
// metamers above it.
func (s *Simulation) nodeShadows(live []bool) []float32 {
	shadows := make([]float32, s.graph.Len())
	depth := s.conf.ShadowDepth
	if depth <= 0 || s.conf.ShadowCoef == 0 {
		return shadows
	}

	var indices []NodeIndex
	var positions []mgl32.Vec3
	min := mgl32.Vec3{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32}
	max := mgl32.Vec3{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32}
	for i, node := range s.graph.Nodes {
		if !live[i] {
			continue
		}
		indices = append(indices, NodeIndex(i))
		positions = append(positions, node.Position)
		for axis := 0; axis < 3; axis++ {
			min[axis] = math32.Min(min[axis], node.Position[axis])
			max[axis] = math32.Max(max[axis], node.Position[axis])
		}
	}
	if len(positions) < 2 {
		return shadows
	}

	longest := math32.Max(max[0]-min[0], math32.Max(max[1]-min[1], max[2]-min[2]))
	grid := environment.NewRegularGrid(min, max, math32.Max(depth, longest/environment.DefaultGridCellsPerAxis))
	grid.Build(positions)

	for k, i := range indices {
		pos := positions[k]
		region := grid.GetRegion(
			pos.Sub(mgl32.Vec3{depth, 0, depth}),
			pos.Add(mgl32.Vec3{depth, depth, depth}),
		)

		var shadow float32
		for _, other := range region {
			if other == k {
				continue
			}
			offset := pos.Sub(positions[other])
			if geom.InCone(offset, geom.Down, s.conf.ShadowAngle, depth) {
				shadow += geom.ExponentialFalloff(s.conf.ShadowCoef, s.conf.ShadowBase, offset.Len())
			}
		}
		shadows[i] = shadow
	}
	return shadows
}

// distributeResource splits the root resource top-down between the buds of
// every live metamer.
func (s *Simulation) distributeResource(le *localEnvironment) {
	if s.graph.Len() == 0 {
		return
	}

	lambda := s.conf.ApicalDominance
	le.nodeResource[RootNode] = s.conf.ResourceCoef *
		math32.Pow(le.nodeExposure[RootNode], s.conf.BudLightSensitivity)

	for i, node := range s.graph.Nodes {
		if !le.live[i] {
			continue
		}

		v := le.nodeResource[i]
		main := &le.buds[node.Buds[MainBud].ID]
		axillary := &le.buds[node.Buds[AxillaryBud].ID]

		denom := lambda*main.LightExposure + (1-lambda)*axillary.LightExposure
		if denom < geom.Epsilon {
			main.Resource = v * lambda
		} else {
			main.Resource = v * lambda * main.LightExposure / denom
		}
		axillary.Resource = v - main.Resource

		for _, bud := range node.Buds {
			if bud.Fate == Shoot {
				le.nodeResource[bud.Child] = le.buds[bud.ID].Resource
			}
		}
	}
}
