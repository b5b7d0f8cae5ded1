package growth

import (
	"context"
	"sort"
	"testing"

	"github.com/sapling-labs/arbor/environment"
	"github.com/sapling-labs/arbor/geom"
	"github.com/stretchr/testify/require"
)

func smallSeedStructure(seed uint64) SeedStructure {
	s := DefaultSeedStructure()
	s.Seed = seed
	s.EnvironmentSize = 20
	s.EnvironmentPointsCount = 20000
	s.IterationsCount = 6
	return s
}

func runSimulation(t *testing.T, conf SeedStructure) *Simulation {
	s, err := NewSimulation(conf)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	return s
}

func TestNewSimulation(t *testing.T) {
	t.Run("plants a root", func(t *testing.T) {
		s, err := NewSimulation(smallSeedStructure(1))
		require.NoError(t, err)
		require.Equal(t, 1, s.Graph().Len())

		root := s.Graph().Nodes[RootNode]
		require.Equal(t, NoNode, root.Parent)
		require.Equal(t, Dormant, root.Buds[MainBud].Fate)
		require.Equal(t, geom.Up, root.Buds[MainBud].Direction)
		require.Equal(t, Dead, root.Buds[AxillaryBud].Fate)
		require.Equal(t, 2, s.Environment().BudCount())
	})

	t.Run("invalid seed structure", func(t *testing.T) {
		conf := smallSeedStructure(1)
		conf.ApicalDominance = 2
		_, err := NewSimulation(conf)
		require.Error(t, err)
	})

	t.Run("used environment", func(t *testing.T) {
		env := emptyEnvironment()
		env.NextBudID()
		_, err := NewSimulationWithEnvironment(smallSeedStructure(1), env)
		require.Error(t, err)
	})
}

func TestScenarioNoResource(t *testing.T) {
	conf := DefaultSeedStructure()
	conf.EnvironmentPointsCount = 0
	conf.IterationsCount = 1

	s := runSimulation(t, conf)
	require.Equal(t, 1, s.Stats().Iterations)
	require.Equal(t, 1, s.Graph().Len())
	require.Equal(t, Dormant, s.Graph().Nodes[RootNode].Buds[MainBud].Fate)

	tree := Finalize(s)
	require.True(t, tree.Root.IsLeaf())
	require.Zero(t, tree.Depth())
}

func TestScenarioDefaultForest(t *testing.T) {
	conf := DefaultSeedStructure()
	s := runSimulation(t, conf)

	tree := Finalize(s)
	require.GreaterOrEqual(t, tree.Depth(), 1)
	require.Greater(t, tree.Root.Width, conf.BaseBranchWidth)
}

func TestSimulationDeterminism(t *testing.T) {
	a := runSimulation(t, smallSeedStructure(42))
	b := runSimulation(t, smallSeedStructure(42))
	require.Equal(t, a.Graph().Nodes, b.Graph().Nodes)
	require.Equal(t, a.Stats(), b.Stats())
	require.Equal(t, Finalize(a), Finalize(b))

	c := runSimulation(t, smallSeedStructure(43))
	require.NotEqual(t, a.Graph().Nodes, c.Graph().Nodes)
}

func TestBudIDsAreDense(t *testing.T) {
	s := runSimulation(t, smallSeedStructure(7))

	var ids []int
	for _, node := range s.Graph().Nodes {
		for _, bud := range node.Buds {
			ids = append(ids, int(bud.ID))
		}
	}
	sort.Ints(ids)

	require.Len(t, ids, s.Environment().BudCount())
	for i, id := range ids {
		require.Equal(t, i, id)
	}
}

func TestFateMonotonicity(t *testing.T) {
	conf := smallSeedStructure(3)
	conf.BranchSelfPruning = 1.5

	s, err := NewSimulation(conf)
	require.NoError(t, err)

	fates := map[environment.BudID]Fate{}
	for i := 0; i < conf.IterationsCount; i++ {
		s.Step()

		for _, node := range s.Graph().Nodes {
			for _, bud := range node.Buds {
				prev, ok := fates[bud.ID]
				if ok {
					switch prev {
					case Dead:
						require.Equal(t, Dead, bud.Fate)
					case Shoot:
						require.NotEqual(t, Dormant, bud.Fate)
					}
				}
				fates[bud.ID] = bud.Fate
			}
		}
	}
	require.Equal(t, conf.IterationsCount, s.Stats().Iterations)
}

func TestResourceConservation(t *testing.T) {
	s, err := NewSimulation(smallSeedStructure(11))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		s.Step()
	}

	le := s.computeLocalEnvironment()
	for i, node := range s.Graph().Nodes {
		if !le.live[i] {
			continue
		}

		main := le.buds[node.Buds[MainBud].ID].Resource
		axillary := le.buds[node.Buds[AxillaryBud].ID].Resource
		require.True(t, geom.RelativeEqual(le.nodeResource[i], main+axillary, 1e-4),
			"node %d: %f != %f + %f", i, le.nodeResource[i], main, axillary)

		for _, bud := range node.Buds {
			if bud.Fate == Shoot {
				require.Equal(t, le.buds[bud.ID].Resource, le.nodeResource[bud.Child])
				require.Equal(t, le.nodeExposure[bud.Child], le.buds[bud.ID].LightExposure)
			}
		}
	}
}

func TestWidthInvariant(t *testing.T) {
	conf := smallSeedStructure(5)
	s := runSimulation(t, conf)

	live := s.Graph().liveNodes()
	for i, node := range s.Graph().Nodes {
		if !live[i] {
			continue
		}

		var sum float32
		var shoots int
		for _, bud := range node.Buds {
			if bud.Fate == Shoot {
				w := s.Graph().Nodes[bud.Child].Width
				sum += w * w
				shoots++
			}
		}

		if shoots == 0 {
			require.Equal(t, conf.BaseBranchWidth, node.Width)
			continue
		}
		require.True(t, geom.RelativeEqual(node.Width*node.Width, sum, 1e-4))
	}
}

func TestSimulationStats(t *testing.T) {
	s := runSimulation(t, smallSeedStructure(9))
	stats := s.Stats()

	require.Equal(t, 6, stats.Iterations)
	require.Equal(t, s.Graph().Len(), stats.Metamers)
	require.LessOrEqual(t, stats.LiveMetamers, stats.Metamers)
	require.Equal(t, 2*stats.Metamers, stats.Buds)
	require.Equal(t, 20000, stats.ConsumedPoints+stats.RemainingPoints)
	require.Greater(t, stats.Shoots, 0)
}

func TestRunCanceled(t *testing.T) {
	s, err := NewSimulation(smallSeedStructure(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Run(ctx))
	require.Zero(t, s.Stats().Iterations)
}

func TestFinalize(t *testing.T) {
	s := runSimulation(t, smallSeedStructure(21))
	tree := Finalize(s)

	require.Equal(t, s.Stats().LiveMetamers, tree.NodeCount())
	require.Equal(t, s.Graph().Nodes[RootNode].Width, tree.Root.Width)

	require.Panics(t, func() { Finalize(s) })
	require.Panics(t, s.Step)
}
