package growth

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sapling-labs/arbor/geom"
	"github.com/stretchr/testify/require"
)

func newFateEnvironment(s *Simulation) *localEnvironment {
	le := &localEnvironment{
		buds: make([]BudLocalEnvironment, s.env.BudCount()),
		live: s.graph.liveNodes(),
	}
	for _, node := range s.graph.Nodes {
		for _, bud := range node.Buds {
			le.buds[bud.ID].OptimalGrowthDirection = geom.Up
		}
	}
	return le
}

func requireVec3InDelta(t *testing.T, expected mgl32.Vec3, actual mgl32.Vec3) {
	t.Helper()
	for axis := 0; axis < 3; axis++ {
		require.InDelta(t, expected[axis], actual[axis], 1e-5)
	}
}

func TestDetermineFates(t *testing.T) {
	t.Run("shoot chains follow vigor", func(t *testing.T) {
		s := verticalChain(t, DefaultSeedStructure(), emptyEnvironment(), 1)

		le := newFateEnvironment(s)
		le.buds[0].Resource = 10
		le.buds[0].SubtreeSize = 2
		le.buds[2].Resource = 2.5
		le.buds[3].Resource = 1

		shoots, deaths := s.determineFates(le)
		require.Equal(t, 2, shoots)
		require.Zero(t, deaths)
		require.Equal(t, 6, s.graph.Len())

		// floor(2.5 * 3 / 2.5) metamers on the main bud.
		main := s.graph.Nodes[1].Buds[MainBud]
		require.Equal(t, Shoot, main.Fate)
		require.Equal(t, NodeIndex(2), main.Child)
		require.Equal(t, NodeIndex(3), s.graph.Nodes[2].Buds[MainBud].Child)
		require.Equal(t, NodeIndex(4), s.graph.Nodes[3].Buds[MainBud].Child)
		require.Equal(t, Dormant, s.graph.Nodes[4].Buds[MainBud].Fate)
		for i, y := range []float32{2, 3, 4} {
			requireVec3InDelta(t, mgl32.Vec3{0, y, 0}, s.graph.Nodes[i+2].Position)
		}

		// floor(1 * 3 / 2.5) metamer on the axillary bud.
		axillary := s.graph.Nodes[1].Buds[AxillaryBud]
		require.Equal(t, Shoot, axillary.Fate)
		require.Equal(t, NodeIndex(5), axillary.Child)
		require.Equal(t, NodeIndex(1), s.graph.Nodes[5].Parent)
		require.Equal(t, Dormant, s.graph.Nodes[5].Buds[MainBud].Fate)

		require.Equal(t, 12, s.env.BudCount())
		s.graph.checkInvariants()
	})

	t.Run("chain length is at least one", func(t *testing.T) {
		s := verticalChain(t, DefaultSeedStructure(), emptyEnvironment(), 1)

		le := newFateEnvironment(s)
		le.buds[0].Resource = 10
		le.buds[0].SubtreeSize = 2
		le.buds[2].Resource = 10
		le.buds[3].Resource = 1

		shoots, _ := s.determineFates(le)
		require.Equal(t, 2, shoots)

		axillary := s.graph.Nodes[1].Buds[AxillaryBud]
		require.Equal(t, Shoot, axillary.Fate)
		require.Equal(t, Dormant, s.graph.Nodes[axillary.Child].Buds[MainBud].Fate)
		require.Equal(t, 6, s.graph.Len())
	})

	t.Run("buds below one unit of resource stay dormant", func(t *testing.T) {
		s := verticalChain(t, DefaultSeedStructure(), emptyEnvironment(), 1)

		le := newFateEnvironment(s)
		le.buds[0].Resource = 10
		le.buds[0].SubtreeSize = 2
		le.buds[2].Resource = 0.99
		le.buds[3].Resource = 0.5

		shoots, deaths := s.determineFates(le)
		require.Zero(t, shoots)
		require.Zero(t, deaths)
		require.Equal(t, 2, s.graph.Len())
		require.Equal(t, Dormant, s.graph.Nodes[1].Buds[MainBud].Fate)
		require.Equal(t, Dormant, s.graph.Nodes[1].Buds[AxillaryBud].Fate)
	})

	t.Run("density at the threshold keeps the shoot", func(t *testing.T) {
		s := verticalChain(t, DefaultSeedStructure(), emptyEnvironment(), 1, 2)

		le := newFateEnvironment(s)
		le.buds[0].Resource = 0.5
		le.buds[0].SubtreeSize = 2
		le.buds[2].Resource = 0.25
		le.buds[2].SubtreeSize = 1

		_, deaths := s.determineFates(le)
		require.Zero(t, deaths)
		require.Equal(t, Shoot, s.graph.Nodes[0].Buds[MainBud].Fate)
	})
}

func TestSelfPruning(t *testing.T) {
	s := verticalChain(t, DefaultSeedStructure(), emptyEnvironment(), 1, 2)

	le := newFateEnvironment(s)
	le.buds[0].Resource = 0.1
	le.buds[0].SubtreeSize = 2
	le.buds[3].Resource = 5 // the pruned subtree does not grow anymore

	shoots, deaths := s.determineFates(le)
	require.Zero(t, shoots)
	require.Equal(t, 1, deaths)

	root := s.graph.Nodes[RootNode].Buds[MainBud]
	require.Equal(t, Dead, root.Fate)
	require.Equal(t, NoNode, root.Child)

	// the pruned metamers stay in the arena, unreachable from the root.
	require.Equal(t, 3, s.graph.Len())
	require.Equal(t, RootNode, s.graph.Nodes[1].Parent)
	require.Equal(t, []bool{true, false, false}, s.graph.liveNodes())
	require.Equal(t, Dormant, s.graph.Nodes[1].Buds[AxillaryBud].Fate)
	s.graph.checkInvariants()

	s.graph.Nodes[RootNode].Width = 1
	s.updateWidths()
	require.Equal(t, s.conf.BaseBranchWidth, s.graph.Nodes[RootNode].Width)

	tree := Finalize(s)
	require.True(t, tree.Root.IsLeaf())
	require.Equal(t, 1, tree.NodeCount())
	require.Equal(t, s.conf.BaseBranchWidth, tree.Root.Width)
}

func TestTropismDirection(t *testing.T) {
	t.Run("vertical growth gets the up axis", func(t *testing.T) {
		conf := DefaultSeedStructure()
		conf.TropismAngle = math32.Pi / 4
		s, err := NewSimulationWithEnvironment(conf, emptyEnvironment())
		require.NoError(t, err)

		requireVec3InDelta(t, geom.Up, s.tropismDirection(geom.Up))
	})

	t.Run("tilted toward the heading", func(t *testing.T) {
		conf := DefaultSeedStructure()
		conf.TropismAngle = math32.Pi / 4
		s, err := NewSimulationWithEnvironment(conf, emptyEnvironment())
		require.NoError(t, err)

		half := math32.Sqrt(2) / 2
		requireVec3InDelta(t, mgl32.Vec3{half, half, 0}, s.tropismDirection(mgl32.Vec3{2, 1, 0}))
		requireVec3InDelta(t, mgl32.Vec3{0, half, -half}, s.tropismDirection(mgl32.Vec3{0, -1, -3}))
	})

	t.Run("no tilt", func(t *testing.T) {
		s, err := NewSimulationWithEnvironment(DefaultSeedStructure(), emptyEnvironment())
		require.NoError(t, err)

		requireVec3InDelta(t, geom.Up, s.tropismDirection(mgl32.Vec3{1, 0, 0}))
	})
}

func TestGrowthDirection(t *testing.T) {
	s, err := NewSimulationWithEnvironment(DefaultSeedStructure(), emptyEnvironment())
	require.NoError(t, err)

	// up + x + 0.2 * up
	expected := mgl32.Vec3{1, 1.2, 0}.Normalize()
	requireVec3InDelta(t, expected, s.growthDirection(geom.Up, mgl32.Vec3{1, 0, 0}))

	// opposite directions cancel out, leaving the tropism.
	requireVec3InDelta(t, geom.Up, s.growthDirection(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{-1, 0, 0}))
}
