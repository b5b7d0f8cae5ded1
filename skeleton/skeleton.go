package skeleton

import "github.com/go-gl/mathgl/mgl32"

// TreeNode is a branching point of a finalized tree.
type TreeNode struct {
	Position mgl32.Vec3 `json:"position"`
	Width    float32    `json:"width"`
	Main     *TreeNode  `json:"main,omitempty"`
	Lateral  *TreeNode  `json:"lateral,omitempty"`
}

// Children returns the non nil children, main first.
func (n *TreeNode) Children() []*TreeNode {
	var children []*TreeNode
	if n.Main != nil {
		children = append(children, n.Main)
	}
	if n.Lateral != nil {
		children = append(children, n.Lateral)
	}
	return children
}

func (n *TreeNode) IsLeaf() bool {
	return n.Main == nil && n.Lateral == nil
}

// TreeStructure is the immutable result of a growth simulation.
type TreeStructure struct {
	Root *TreeNode `json:"root"`
}

// Edge is a parent to child link of a tree.
type Edge struct {
	Parent *TreeNode
	Child  *TreeNode
}

// Walk visits every node in depth-first pre-order, main child before lateral.
// The parent of the root is nil.
func (t *TreeStructure) Walk(fn func(node *TreeNode, parent *TreeNode)) {
	if t == nil || t.Root == nil {
		return
	}

	type item struct {
		node   *TreeNode
		parent *TreeNode
	}
	stack := []item{{node: t.Root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(it.node, it.parent)

		if it.node.Lateral != nil {
			stack = append(stack, item{node: it.node.Lateral, parent: it.node})
		}
		if it.node.Main != nil {
			stack = append(stack, item{node: it.node.Main, parent: it.node})
		}
	}
}

func (t *TreeStructure) NodeCount() int {
	var count int
	t.Walk(func(*TreeNode, *TreeNode) {
		count++
	})
	return count
}

func (t *TreeStructure) Edges() []Edge {
	var edges []Edge
	t.Walk(func(node *TreeNode, parent *TreeNode) {
		if parent != nil {
			edges = append(edges, Edge{Parent: parent, Child: node})
		}
	})
	return edges
}

// Depth returns the number of edges on the longest root to leaf path.
func (t *TreeStructure) Depth() int {
	if t == nil || t.Root == nil {
		return 0
	}

	depths := map[*TreeNode]int{}
	var deepest int
	t.Walk(func(node *TreeNode, parent *TreeNode) {
		if parent == nil {
			depths[node] = 0
			return
		}
		d := depths[parent] + 1
		depths[node] = d
		if d > deepest {
			deepest = d
		}
	})
	return deepest
}
