package growth

import (
	"github.com/sapling-labs/arbor/skeleton"
)

// Finalize converts the live part of the simulated graph into an immutable
// tree. Shoot buds become children, Dormant and Dead buds leave no child.
// A simulation can only be finalized once.
func Finalize(s *Simulation) *skeleton.TreeStructure {
	if s.finalized {
		panic("growth: simulation already finalized")
	}
	s.finalized = true

	if s.graph.Len() == 0 {
		return &skeleton.TreeStructure{}
	}

	nodes := make([]*skeleton.TreeNode, s.graph.Len())
	live := s.graph.liveNodes()
	for i, m := range s.graph.Nodes {
		if !live[i] {
			continue
		}

		if nodes[i] == nil {
			nodes[i] = &skeleton.TreeNode{Position: m.Position, Width: m.Width}
		}
		node := nodes[i]

		for k, bud := range m.Buds {
			switch bud.Fate {
			case Shoot:
				child := &s.graph.Nodes[bud.Child]
				nodes[bud.Child] = &skeleton.TreeNode{Position: child.Position, Width: child.Width}
				if k == MainBud {
					node.Main = nodes[bud.Child]
				} else {
					node.Lateral = nodes[bud.Child]
				}
			case Dormant, Dead:
			default:
				panic(unknownFate(bud.Fate))
			}
		}
	}

	return &skeleton.TreeStructure{Root: nodes[RootNode]}
}
