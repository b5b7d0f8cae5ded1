package growth

import "github.com/chewxy/math32"

// updateWidths applies the pipe model bottom-up: a metamer without shoot has
// the base width, any other one has the square root of the sum of its shoots'
// squared widths.
func (s *Simulation) updateWidths() {
	live := s.graph.liveNodes()

	for i := s.graph.Len() - 1; i >= 0; i-- {
		if !live[i] {
			continue
		}

		node := &s.graph.Nodes[i]
		var sum float32
		var shoots int
		for _, bud := range node.Buds {
			if bud.Fate == Shoot {
				w := s.graph.Nodes[bud.Child].Width
				sum += w * w
				shoots++
			}
		}

		if shoots == 0 {
			node.Width = s.conf.BaseBranchWidth
		} else {
			node.Width = math32.Sqrt(sum)
		}
	}
}
