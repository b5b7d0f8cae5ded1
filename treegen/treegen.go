package treegen

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/sapling-labs/arbor/environment"
	"github.com/sapling-labs/arbor/featureflag"
	"github.com/sapling-labs/arbor/growth"
	"github.com/sapling-labs/arbor/mesh"
	"github.com/sapling-labs/arbor/models"
	"github.com/sapling-labs/arbor/skeleton"
)

const (
	// DefaultSubdivisions is the number of points inserted per edge when
	// smoothing is enabled without an explicit count.
	DefaultSubdivisions = 2

	ErrTypeGenerationFailed = "generation-failed"
	ErrTypeDeadTree         = "dead-tree"
)

type Options struct {
	Flags        featureflag.FeatureFlag
	Subdivisions int
	RingSegments int
}

type Stats struct {
	growth.Stats

	Depth         int           `json:"depth"`
	SkeletonNodes int           `json:"skeleton_nodes"`
	Vertices      int           `json:"vertices"`
	Triangles     int           `json:"triangles"`
	Duration      time.Duration `json:"duration"`
}

type Result struct {
	Identity      models.TreeIdentity
	SeedStructure growth.SeedStructure
	Skeleton      *skeleton.TreeStructure
	Mesh          *mesh.Mesh
	Stats         Stats
}

// Generate grows the tree of the given identity and builds its mesh. The
// identity seed replaces the seed of conf. A tree without health is not grown.
func Generate(ctx context.Context, tree models.TreeIdentity, conf growth.SeedStructure, opts Options) (*Result, error) {
	start := time.Now()

	res, err := generate(ctx, tree, conf, opts)
	duration := time.Since(start)
	instrumentGeneration(ctx, err, duration)

	if err != nil {
		logs.WithTag("tree_id", tree.ID).
			WithTag("seed", tree.Seed).
			WithTag("duration", duration).
			Warn(err)
		return nil, err
	}

	res.Stats.Duration = duration
	instrumentResult(res)

	logs.WithTag("tree_id", tree.ID).
		WithTag("name", tree.Name).
		WithTag("seed", tree.Seed).
		WithTag("kind", tree.Kind).
		WithTag("flags", opts.Flags.Strings()).
		WithTag("iterations", res.Stats.Iterations).
		WithTag("metamers", res.Stats.LiveMetamers).
		WithTag("depth", res.Stats.Depth).
		WithTag("triangles", res.Stats.Triangles).
		WithTag("duration", duration).
		Info("tree generated")
	return res, nil
}

func generate(ctx context.Context, tree models.TreeIdentity, conf growth.SeedStructure, opts Options) (*Result, error) {
	if !tree.IsAlive() {
		return nil, errors.New("tree is dead").
			WithType(ErrTypeDeadTree).
			WithTag("tree_id", tree.ID).
			WithTag("health", tree.Health)
	}

	conf.Seed = tree.Seed
	opts.Flags.IfSet(featureflag.FlagHalfSpaceEnvironment, func() {
		conf.EnvironmentShape = environment.ShapeHalfSpace
	})
	opts.Flags.IfSet(featureflag.FlagDisableShadow, func() {
		conf.ShadowCoef = 0
	})

	sim, err := growth.NewSimulation(conf)
	if err != nil {
		return nil, err
	}
	if err := sim.Run(ctx); err != nil {
		return nil, errors.New("growing tree failed").
			WithType(ErrTypeGenerationFailed).
			WithTag("tree_id", tree.ID).
			Wrap(err)
	}

	skel := growth.Finalize(sim)
	opts.Flags.IfSet(featureflag.FlagSmoothSkeleton, func() {
		subdivisions := opts.Subdivisions
		if subdivisions <= 0 {
			subdivisions = DefaultSubdivisions
		}
		skel = skeleton.Subdivide(skel, subdivisions)
	})

	m := mesh.Build(skel, mesh.Options{RingSegments: opts.RingSegments})

	return &Result{
		Identity:      tree,
		SeedStructure: conf,
		Skeleton:      skel,
		Mesh:          m,
		Stats: Stats{
			Stats:         sim.Stats(),
			Depth:         skel.Depth(),
			SkeletonNodes: skel.NodeCount(),
			Vertices:      m.VertexCount(),
			Triangles:     m.TriangleCount(),
		},
	}, nil
}
