package growth

import (
	"context"
	"math/rand/v2"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/sapling-labs/arbor/environment"
	"github.com/sapling-labs/arbor/geom"
)

// PCG stream selector for growth decisions, distinct from the environment
// scatter stream.
const growthStream = 0x67726f777468

// Stats summarizes a simulation.
type Stats struct {
	Iterations      int `json:"iterations"`
	Metamers        int `json:"metamers"`
	LiveMetamers    int `json:"live_metamers"`
	Buds            int `json:"buds"`
	Shoots          int `json:"shoots"`
	PrunedBranches  int `json:"pruned_branches"`
	ConsumedPoints  int `json:"consumed_points"`
	RemainingPoints int `json:"remaining_points"`
}

// Simulation grows a single tree. It is not safe for concurrent use.
type Simulation struct {
	conf  SeedStructure
	env   *environment.Environment
	graph Graph
	rng   *rand.Rand

	stats     Stats
	finalized bool
}

// NewSimulation validates the seed structure and plants a tree in a freshly
// generated environment.
func NewSimulation(conf SeedStructure) (*Simulation, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	env := environment.Generate(
		conf.Seed,
		conf.EnvironmentSize,
		conf.EnvironmentPointsCount,
		conf.EnvironmentShape,
	)
	return newSimulation(conf, env), nil
}

// NewSimulationWithEnvironment plants a tree in the given environment, which
// must not have allocated any bud yet. The environment is owned by the
// simulation afterwards.
func NewSimulationWithEnvironment(conf SeedStructure, env *environment.Environment) (*Simulation, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if env.BudCount() != 0 {
		return nil, errors.New("environment already used by a simulation").
			WithType(ErrTypeInvalidConfig).
			WithTag("buds", env.BudCount())
	}
	return newSimulation(conf, env), nil
}

func newSimulation(conf SeedStructure, env *environment.Environment) *Simulation {
	s := &Simulation{
		conf: conf,
		env:  env,
		rng:  rand.New(rand.NewPCG(conf.Seed, growthStream)),
	}

	main := newBud(geom.Up, env.NextBudID())
	axillary := newBud(geom.Up, env.NextBudID())
	axillary.Fate = Dead

	s.graph.add(Metamer{
		Width:  conf.BaseBranchWidth,
		Length: conf.InternodeLength,
		Parent: NoNode,
		Buds:   [budsPerShoot]Bud{main, axillary},
	})
	s.updateStats()
	return s
}

// Step runs one growth iteration.
func (s *Simulation) Step() {
	if s.finalized {
		panic("growth: step on a finalized simulation")
	}

	live := s.graph.liveNodes()
	s.stats.ConsumedPoints += s.env.ClearOccupancyZones(s.occupancyZones(live))

	le := s.computeLocalEnvironment()
	shoots, deaths := s.determineFates(le)
	s.updateWidths()
	s.graph.checkInvariants()

	s.stats.Iterations++
	s.stats.Shoots += shoots
	s.stats.PrunedBranches += deaths
	s.updateStats()
}

// Run steps until the configured iteration count is reached. The context is
// checked between iterations.
func (s *Simulation) Run(ctx context.Context) error {
	for s.stats.Iterations < s.conf.IterationsCount {
		if err := ctx.Err(); err != nil {
			return errors.New("growth interrupted").
				WithTag("iteration", s.stats.Iterations).
				Wrap(err)
		}
		s.Step()
	}
	return nil
}

func (s *Simulation) Graph() *Graph {
	return &s.graph
}

func (s *Simulation) Environment() *environment.Environment {
	return s.env
}

func (s *Simulation) SeedStructure() SeedStructure {
	return s.conf
}

func (s *Simulation) Stats() Stats {
	return s.stats
}

func (s *Simulation) updateStats() {
	var liveCount int
	for _, l := range s.graph.liveNodes() {
		if l {
			liveCount++
		}
	}

	s.stats.Metamers = s.graph.Len()
	s.stats.LiveMetamers = liveCount
	s.stats.Buds = s.env.BudCount()
	s.stats.RemainingPoints = len(s.env.Points)
}
