package skeleton

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sapling-labs/arbor/geom"
)

// Subdivide returns a copy of the tree where every edge is split into k+1
// edges. Inserted points lie on the quadratic curve going from the child
// through a knee prolonging the parent edge to the parent, which rounds the
// joints. Widths are interpolated linearly. The input tree is not modified.
func Subdivide(tree *TreeStructure, k int) *TreeStructure {
	if tree == nil || tree.Root == nil {
		return &TreeStructure{}
	}
	if k < 0 {
		k = 0
	}

	root := &TreeNode{Position: tree.Root.Position, Width: tree.Root.Width}
	copies := map[*TreeNode]*TreeNode{tree.Root: root}
	parents := map[*TreeNode]*TreeNode{}

	tree.Walk(func(node *TreeNode, parent *TreeNode) {
		if parent == nil {
			return
		}
		parents[node] = parent

		knee := kneeOf(parent, parents[parent])
		attach := copies[parent]
		isMain := parent.Main == node

		// Inserted points are generated from the child toward the parent, so
		// the chain is built from the point nearest to the parent.
		for i := k; i >= 1; i-- {
			t := float32(i) / float32(k+1)
			inserted := &TreeNode{
				Position: geom.QuadraticBezier(node.Position, knee, parent.Position, t),
				Width:    geom.LerpScalar(node.Width, parent.Width, t),
			}
			link(attach, inserted, isMain)
			attach, isMain = inserted, true
		}

		child := &TreeNode{Position: node.Position, Width: node.Width}
		link(attach, child, isMain)
		copies[node] = child
	})

	return &TreeStructure{Root: root}
}

// kneeOf prolongs the edge arriving at current by half its length. The root
// has no arriving edge and uses half the up axis.
func kneeOf(current *TreeNode, parent *TreeNode) mgl32.Vec3 {
	if parent == nil {
		return current.Position.Add(geom.Up.Mul(0.5))
	}
	return current.Position.Add(current.Position.Sub(parent.Position).Mul(0.5))
}

func link(parent *TreeNode, child *TreeNode, main bool) {
	if main {
		parent.Main = child
	} else {
		parent.Lateral = child
	}
}
