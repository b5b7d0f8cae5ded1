package growth

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sapling-labs/arbor/environment"
)

// NodeIndex refers to a metamer in a Graph arena.
type NodeIndex int32

const (
	// NoNode is the child of a bud that does not carry a shoot.
	NoNode NodeIndex = -1

	RootNode NodeIndex = 0
)

// Bud positions inside Metamer.Buds.
const (
	MainBud      = 0
	AxillaryBud  = 1
	budsPerShoot = 2
)

// Fate is the state of a bud.
//
// A bud starts Dormant. It becomes Shoot when it grows a chain of metamers and
// Dead when it is pruned. Dead is final and no bud ever goes back to Dormant.
type Fate uint8

const (
	Dormant Fate = iota
	Shoot
	Dead
)

func (f Fate) String() string {
	switch f {
	case Dormant:
		return "dormant"
	case Shoot:
		return "shoot"
	case Dead:
		return "dead"
	default:
		return fmt.Sprintf("fate(%d)", uint8(f))
	}
}

func unknownFate(f Fate) string {
	return fmt.Sprintf("growth: unknown bud fate %s", f)
}

type Bud struct {
	Direction mgl32.Vec3
	ID        environment.BudID
	Fate      Fate

	// Child is the first metamer of the shoot. It is NoNode unless Fate is
	// Shoot.
	Child NodeIndex
}

func newBud(direction mgl32.Vec3, id environment.BudID) Bud {
	return Bud{
		Direction: direction,
		ID:        id,
		Fate:      Dormant,
		Child:     NoNode,
	}
}

func (b *Bud) shoot(child NodeIndex) {
	if b.Fate != Dormant {
		panic(fmt.Sprintf("growth: bud %d cannot shoot from %s", b.ID, b.Fate))
	}
	b.Fate = Shoot
	b.Child = child
}

// die marks the bud as dead. A pruned shoot stays in the arena but is no
// longer reachable from the root.
func (b *Bud) die() {
	switch b.Fate {
	case Dormant, Shoot:
		b.Fate = Dead
		b.Child = NoNode
	case Dead:
		panic(fmt.Sprintf("growth: bud %d is already dead", b.ID))
	default:
		panic(unknownFate(b.Fate))
	}
}

// Metamer is one internode of the tree with its two buds.
type Metamer struct {
	Position mgl32.Vec3
	Width    float32
	Length   float32
	Parent   NodeIndex
	Buds     [budsPerShoot]Bud
}

// Graph is the arena holding every metamer created by a simulation. A child
// always has a larger index than its parent so ascending order walks the tree
// top-down and descending order bottom-up.
type Graph struct {
	Nodes []Metamer
}

func (g *Graph) Len() int {
	return len(g.Nodes)
}

func (g *Graph) add(m Metamer) NodeIndex {
	g.Nodes = append(g.Nodes, m)
	return NodeIndex(len(g.Nodes) - 1)
}

// liveNodes marks the metamers reachable from the root through Shoot buds.
func (g *Graph) liveNodes() []bool {
	live := make([]bool, len(g.Nodes))
	if len(g.Nodes) == 0 {
		return live
	}

	live[RootNode] = true
	for i := range g.Nodes {
		if !live[i] {
			continue
		}
		for _, bud := range g.Nodes[i].Buds {
			if bud.Fate == Shoot {
				live[bud.Child] = true
			}
		}
	}
	return live
}

// checkInvariants panics when the arena is not a strict tree.
func (g *Graph) checkInvariants() {
	for i, node := range g.Nodes {
		for _, bud := range node.Buds {
			switch bud.Fate {
			case Shoot:
				if bud.Child <= NodeIndex(i) || int(bud.Child) >= len(g.Nodes) {
					panic(fmt.Sprintf("growth: bud %d of node %d has invalid child %d", bud.ID, i, bud.Child))
				}
				if g.Nodes[bud.Child].Parent != NodeIndex(i) {
					panic(fmt.Sprintf("growth: node %d is not the parent of node %d", i, bud.Child))
				}
			case Dormant, Dead:
				if bud.Child != NoNode {
					panic(fmt.Sprintf("growth: %s bud %d owns node %d", bud.Fate, bud.ID, bud.Child))
				}
			default:
				panic(unknownFate(bud.Fate))
			}
		}
	}
}
