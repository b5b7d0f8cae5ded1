package treegen

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sapling-labs/arbor/featureflag"
	"github.com/sapling-labs/arbor/growth"
	"github.com/sapling-labs/arbor/mesh"
	"github.com/sapling-labs/arbor/models"
	"github.com/stretchr/testify/require"
)

func testSeedStructure() growth.SeedStructure {
	conf := growth.DefaultSeedStructure()
	conf.EnvironmentSize = 20
	conf.EnvironmentPointsCount = 20000
	conf.IterationsCount = 4
	return conf
}

func TestGenerate(t *testing.T) {
	tree := models.NewTreeIdentity("birch", 42)

	res, err := Generate(context.Background(), tree, testSeedStructure(), Options{})
	require.NoError(t, err)

	require.Equal(t, tree, res.Identity)
	require.Equal(t, uint64(42), res.SeedStructure.Seed)
	require.Equal(t, 4, res.Stats.Iterations)
	require.Equal(t, res.Stats.LiveMetamers, res.Stats.SkeletonNodes)
	require.Equal(t, res.Skeleton.Depth(), res.Stats.Depth)
	require.Equal(t, res.Stats.SkeletonNodes*mesh.DefaultRingSegments, res.Stats.Vertices)
	require.Equal(t, (res.Stats.SkeletonNodes-1)*2*mesh.DefaultRingSegments, res.Stats.Triangles)
	require.Positive(t, res.Stats.Duration)

	again, err := Generate(context.Background(), tree, testSeedStructure(), Options{})
	require.NoError(t, err)
	require.Equal(t, res.Skeleton, again.Skeleton)
	require.Equal(t, res.Mesh, again.Mesh)
}

func TestGenerateFlags(t *testing.T) {
	tree := models.NewTreeIdentity("oak", 3)

	t.Run("smooth skeleton", func(t *testing.T) {
		res, err := Generate(context.Background(), tree, testSeedStructure(), Options{
			Flags:        featureflag.New([]string{string(featureflag.FlagSmoothSkeleton)}),
			Subdivisions: 3,
			RingSegments: 8,
		})
		require.NoError(t, err)

		live := res.Stats.LiveMetamers
		require.Equal(t, live+3*(live-1), res.Stats.SkeletonNodes)
		require.Equal(t, res.Stats.SkeletonNodes*8, res.Stats.Vertices)
	})

	t.Run("smooth skeleton default subdivisions", func(t *testing.T) {
		res, err := Generate(context.Background(), tree, testSeedStructure(), Options{
			Flags: featureflag.New([]string{string(featureflag.FlagSmoothSkeleton)}),
		})
		require.NoError(t, err)

		live := res.Stats.LiveMetamers
		require.Equal(t, live+DefaultSubdivisions*(live-1), res.Stats.SkeletonNodes)
	})

	t.Run("half space and no shadow", func(t *testing.T) {
		res, err := Generate(context.Background(), tree, testSeedStructure(), Options{
			Flags: featureflag.New([]string{
				string(featureflag.FlagHalfSpaceEnvironment),
				string(featureflag.FlagDisableShadow),
			}),
		})
		require.NoError(t, err)
		require.Equal(t, "half_space", string(res.SeedStructure.EnvironmentShape))
		require.Zero(t, res.SeedStructure.ShadowCoef)
	})
}

func TestGenerateErrors(t *testing.T) {
	tree := models.NewTreeIdentity("ash", 5)

	t.Run("invalid seed structure", func(t *testing.T) {
		conf := testSeedStructure()
		conf.BaseBranchWidth = 0

		_, err := Generate(context.Background(), tree, conf, Options{})
		require.Error(t, err)
		require.Equal(t, growth.ErrTypeInvalidConfig, errors.Type(err))
	})

	t.Run("dead tree", func(t *testing.T) {
		dead := generationsTotal.With(prometheus.Labels{
			statusLabel:  statusError,
			errTypeLabel: ErrTypeDeadTree,
		})
		before := testutil.ToFloat64(dead)

		fallen := tree
		fallen.Damage(models.MaxHealth)

		_, err := Generate(context.Background(), fallen, testSeedStructure(), Options{})
		require.Error(t, err)
		require.Equal(t, ErrTypeDeadTree, errors.Type(err))
		require.Equal(t, before+1, testutil.ToFloat64(dead))
	})

	t.Run("damaged tree still grows", func(t *testing.T) {
		hurt := tree
		hurt.Damage(models.MaxHealth - 1)

		res, err := Generate(context.Background(), hurt, testSeedStructure(), Options{})
		require.NoError(t, err)
		require.Equal(t, uint8(1), res.Identity.Health)
	})

	t.Run("canceled", func(t *testing.T) {
		canceled := generationsTotal.With(prometheus.Labels{
			statusLabel:  statusCanceled,
			errTypeLabel: ErrTypeGenerationFailed,
		})
		before := testutil.ToFloat64(canceled)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Generate(ctx, tree, testSeedStructure(), Options{})
		require.Error(t, err)
		require.Equal(t, ErrTypeGenerationFailed, errors.Type(err))
		require.Equal(t, before+1, testutil.ToFloat64(canceled))
	})
}

func TestGenerateLogs(t *testing.T) {
	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprint(&b, e)
	})

	tree := models.NewTreeIdentity("logged", 8)
	_, err := Generate(context.Background(), tree, testSeedStructure(), Options{})
	require.NoError(t, err)

	out := b.String()
	require.Contains(t, out, "tree generated")
	require.Contains(t, out, `"seed":8`)
	require.Contains(t, out, `"name":"logged"`)
	t.Log(out)
}
