package mesh

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sapling-labs/arbor/geom"
	"github.com/sapling-labs/arbor/skeleton"
)

const (
	DefaultRingSegments = 16
	minRingSegments     = 3
)

type Options struct {
	// RingSegments is the number of vertices of the ring extruded around
	// every node. Defaults to DefaultRingSegments.
	RingSegments int
}

func (o Options) ringSegments() int {
	switch {
	case o.RingSegments <= 0:
		return DefaultRingSegments
	case o.RingSegments < minRingSegments:
		return minRingSegments
	default:
		return o.RingSegments
	}
}

// Mesh is an indexed triangle list with per vertex normals. Triangles wind
// counter-clockwise when seen from outside the branch.
type Mesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Build extrudes a ring around every node of the tree and stitches the ring
// of each node to the ring of each of its children.
func Build(tree *skeleton.TreeStructure, opts Options) *Mesh {
	m := &Mesh{}
	if tree == nil || tree.Root == nil {
		return m
	}

	segments := opts.ringSegments()
	ring := unitRing(segments)

	type item struct {
		node       *skeleton.TreeNode
		parent     *skeleton.TreeNode
		parentRing uint32
	}
	stack := []item{{node: tree.Root}}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		start := m.addRing(ring, it.node, nodeDirection(it.node, it.parent))
		if it.parent != nil {
			m.stitch(it.parentRing, start, uint32(segments))
		}

		if it.node.Lateral != nil {
			stack = append(stack, item{node: it.node.Lateral, parent: it.node, parentRing: start})
		}
		if it.node.Main != nil {
			stack = append(stack, item{node: it.node.Main, parent: it.node, parentRing: start})
		}
	}
	return m
}

// nodeDirection sums the incoming edge and the outgoing edges of a node. A
// node with no usable direction is oriented along the up axis.
func nodeDirection(node *skeleton.TreeNode, parent *skeleton.TreeNode) mgl32.Vec3 {
	var direction mgl32.Vec3
	if parent != nil {
		direction = direction.Add(node.Position.Sub(parent.Position))
	}
	for _, child := range node.Children() {
		direction = direction.Add(child.Position.Sub(node.Position))
	}
	return geom.SafeNormalize(direction)
}

// unitRing returns the unit circle in the XZ plane, without repeating the
// first vertex.
func unitRing(segments int) []mgl32.Vec3 {
	ring := make([]mgl32.Vec3, segments)
	for i := range ring {
		angle := float32(i) / float32(segments) * 2 * math32.Pi
		sin, cos := math32.Sincos(angle)
		ring[i] = mgl32.Vec3{cos, 0, sin}
	}
	return ring
}

func (m *Mesh) addRing(ring []mgl32.Vec3, node *skeleton.TreeNode, direction mgl32.Vec3) uint32 {
	start := uint32(len(m.Positions))
	rotation := geom.RotationFromUp(direction)

	for _, v := range ring {
		normal := rotation.Rotate(v)
		m.Positions = append(m.Positions, node.Position.Add(normal.Mul(node.Width)))
		m.Normals = append(m.Normals, normal)
	}
	return start
}

// stitch joins two rings with one quad per segment, each split in two
// triangles.
func (m *Mesh) stitch(parentRing uint32, childRing uint32, segments uint32) {
	for i := uint32(0); i < segments; i++ {
		j := (i + 1) % segments

		parentFirst, parentSecond := parentRing+i, parentRing+j
		childFirst, childSecond := childRing+i, childRing+j

		m.Indices = append(m.Indices,
			parentSecond, parentFirst, childFirst,
			childFirst, childSecond, parentSecond,
		)
	}
}
