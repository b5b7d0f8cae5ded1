package growth

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sapling-labs/arbor/geom"
)

// determineFates updates the fate of every bud of the metamers that existed
// when the iteration started, top-down. Shoots grown during the pass are not
// evaluated before the next iteration.
func (s *Simulation) determineFates(le *localEnvironment) (shoots int, deaths int) {
	var highestVigor float32
	for i, node := range s.graph.Nodes {
		if !le.live[i] {
			continue
		}
		for _, bud := range node.Buds {
			if bud.Fate == Dormant {
				highestVigor = math32.Max(highestVigor, le.buds[bud.ID].Resource)
			}
		}
	}

	count := s.graph.Len()
	live := make([]bool, count)
	if count > 0 {
		live[RootNode] = true
	}

	for i := 0; i < count; i++ {
		if !live[i] {
			continue
		}

		for k := 0; k < budsPerShoot; k++ {
			bud := s.graph.Nodes[i].Buds[k]
			info := le.buds[bud.ID]

			switch bud.Fate {
			case Dormant:
				if info.Resource < 1 {
					continue
				}
				length := int(math32.Floor(info.Resource * s.conf.MaximumShootLength / highestVigor))
				if length < 1 {
					length = 1
				}
				s.growShoot(NodeIndex(i), k, length, info.OptimalGrowthDirection)
				shoots++

			case Shoot:
				if info.Resource/float32(info.SubtreeSize) < s.conf.BranchSelfPruning {
					s.graph.Nodes[i].Buds[k].die()
					deaths++
					continue
				}
				live[bud.Child] = true

			case Dead:
			default:
				panic(unknownFate(bud.Fate))
			}
		}
	}
	return shoots, deaths
}

// growShoot attaches a chain of length metamers to the given bud. Every
// metamer of the chain but the last has its main bud turned into a shoot.
func (s *Simulation) growShoot(parent NodeIndex, bud int, length int, optimal mgl32.Vec3) {
	prev := geom.SafeNormalize(s.graph.Nodes[parent].Buds[bud].Direction)
	position := s.graph.Nodes[parent].Position

	for n := 0; n < length; n++ {
		direction := s.growthDirection(prev, optimal)
		position = position.Add(direction.Mul(s.conf.InternodeLength))

		child := s.addMetamer(parent, position, direction)
		s.graph.Nodes[parent].Buds[bud].shoot(child)

		parent, bud = child, MainBud
		prev = direction
	}
}

func (s *Simulation) addMetamer(parent NodeIndex, position mgl32.Vec3, direction mgl32.Vec3) NodeIndex {
	mainDirection := direction
	if s.conf.MainBranchingAngle > 0 {
		mainDirection = geom.RandomInCone(s.rng, direction, s.conf.MainBranchingAngle)
	}
	lateralDirection := geom.RandomInCone(s.rng, direction, s.conf.LateralBranchingAngle)

	main := newBud(mainDirection, s.env.NextBudID())
	axillary := newBud(lateralDirection, s.env.NextBudID())

	return s.graph.add(Metamer{
		Position: position,
		Width:    s.conf.BaseBranchWidth,
		Length:   s.conf.InternodeLength,
		Parent:   parent,
		Buds:     [budsPerShoot]Bud{main, axillary},
	})
}

// growthDirection blends the previous direction, the optimal growth direction
// and the tropism.
func (s *Simulation) growthDirection(prev mgl32.Vec3, optimal mgl32.Vec3) mgl32.Vec3 {
	direction := prev.Mul(s.conf.CurrentDirectionWeight).
		Add(optimal.Mul(s.conf.OptimalGrowthDirectionWeight)).
		Add(s.tropismDirection(prev).Mul(s.conf.TropismWeight))
	return geom.SafeNormalize(direction)
}

// tropismDirection returns the up axis tilted by the tropism angle inside the
// vertical plane containing prev. A vertical prev has no such plane and gets
// the up axis.
func (s *Simulation) tropismDirection(prev mgl32.Vec3) mgl32.Vec3 {
	heading := geom.ProjectOntoPlane(prev, geom.Up)
	if geom.IsDegenerate(heading) {
		return geom.Up
	}

	sin, cos := math32.Sincos(s.conf.TropismAngle)
	return geom.Up.Mul(cos).Add(heading.Normalize().Mul(sin))
}
