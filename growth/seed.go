package growth

import (
	"io"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/chewxy/math32"
	"github.com/sapling-labs/arbor/environment"
	"github.com/sapling-labs/arbor/models"
	"gopkg.in/yaml.v3"
)

const (
	ErrTypeInvalidConfig = "invalid-config"
)

// SeedStructure holds every parameter driving a growth simulation. Angles are
// in radians and distances in world units.
type SeedStructure struct {
	Seed uint64 `yaml:"seed" json:"seed"`

	MainBranchingAngle    float32 `yaml:"main_branching_angle" json:"main_branching_angle"`
	LateralBranchingAngle float32 `yaml:"lateral_branching_angle" json:"lateral_branching_angle"`

	// Share of the incoming resource a node gives to its main bud, in [0, 1].
	ApicalDominance     float32 `yaml:"apical_dominance" json:"apical_dominance"`
	BudLightSensitivity float32 `yaml:"bud_light_sensitivity" json:"bud_light_sensitivity"`
	BranchSelfPruning   float32 `yaml:"branch_self_pruning" json:"branch_self_pruning"`
	MaximumShootLength  float32 `yaml:"maximum_shoot_length" json:"maximum_shoot_length"`

	TropismAngle                 float32 `yaml:"tropism_angle" json:"tropism_angle"`
	TropismWeight                float32 `yaml:"tropism_weight" json:"tropism_weight"`
	CurrentDirectionWeight       float32 `yaml:"current_direction_weight" json:"current_direction_weight"`
	OptimalGrowthDirectionWeight float32 `yaml:"optimal_growth_direction_weight" json:"optimal_growth_direction_weight"`

	BudPerceptionAngle        float32 `yaml:"bud_perception_angle" json:"bud_perception_angle"`
	BudPerceptionDistanceCoef float32 `yaml:"bud_perception_distance_coef" json:"bud_perception_distance_coef"`
	OccupancyRadiusCoef       float32 `yaml:"occupancy_radius_coef" json:"occupancy_radius_coef"`

	ResourceCoef      float32 `yaml:"resource_coef" json:"resource_coef"`
	FullLightExposure float32 `yaml:"full_light_exposure" json:"full_light_exposure"`

	// Shadow cast by a metamer on the ones below it: ShadowCoef *
	// ShadowBase^(-d) for every metamer within ShadowDepth inside the downward
	// cone of half-angle ShadowAngle.
	ShadowAngle float32 `yaml:"shadow_angle" json:"shadow_angle"`
	ShadowCoef  float32 `yaml:"shadow_coef" json:"shadow_coef"`
	ShadowBase  float32 `yaml:"shadow_base" json:"shadow_base"`
	ShadowDepth float32 `yaml:"shadow_depth" json:"shadow_depth"`

	BaseBranchWidth float32 `yaml:"base_branch_width" json:"base_branch_width"`
	InternodeLength float32 `yaml:"internode_length" json:"internode_length"`

	EnvironmentSize        float32           `yaml:"environment_size" json:"environment_size"`
	EnvironmentPointsCount int               `yaml:"environment_points_count" json:"environment_points_count"`
	EnvironmentShape       environment.Shape `yaml:"environment_shape" json:"environment_shape"`

	IterationsCount int `yaml:"iterations_count" json:"iterations_count"`
}

// DefaultSeedStructure returns the parameters used when nothing is overridden.
func DefaultSeedStructure() SeedStructure {
	return SeedStructure{
		MainBranchingAngle:           0,
		LateralBranchingAngle:        math32.Pi / 4,
		ApicalDominance:              0.5,
		BudLightSensitivity:          1,
		BranchSelfPruning:            0.25,
		MaximumShootLength:           3,
		TropismAngle:                 0,
		TropismWeight:                0.2,
		CurrentDirectionWeight:       1,
		OptimalGrowthDirectionWeight: 1,
		BudPerceptionAngle:           math32.Pi / 4,
		BudPerceptionDistanceCoef:    4,
		OccupancyRadiusCoef:          2,
		ResourceCoef:                 2,
		FullLightExposure:            1,
		ShadowAngle:                  math32.Pi / 4,
		ShadowCoef:                   0.2,
		ShadowBase:                   2,
		ShadowDepth:                  8,
		BaseBranchWidth:              0.05,
		InternodeLength:              1,
		EnvironmentSize:              40,
		EnvironmentPointsCount:       100000,
		EnvironmentShape:             environment.ShapeCube,
		IterationsCount:              5,
	}
}

// SeedStructureFrom returns the default parameters seeded with the tree seed.
func SeedStructureFrom(tree models.TreeIdentity) SeedStructure {
	s := DefaultSeedStructure()
	s.Seed = tree.Seed
	return s
}

// LoadSeedStructure decodes a YAML document over the default parameters.
// Fields absent from the document keep their default value. An empty
// document yields the defaults.
func LoadSeedStructure(r io.Reader) (SeedStructure, error) {
	s := DefaultSeedStructure()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return SeedStructure{}, errors.New("decoding seed structure failed").
			WithType(ErrTypeInvalidConfig).
			Wrap(err)
	}

	if err := s.Validate(); err != nil {
		return SeedStructure{}, err
	}
	return s, nil
}

// Validate returns an error describing the first out of range parameter.
func (s SeedStructure) Validate() error {
	checks := []struct {
		field string
		value any
		valid bool
	}{
		{"main_branching_angle", s.MainBranchingAngle, inRange(s.MainBranchingAngle, 0, math32.Pi)},
		{"lateral_branching_angle", s.LateralBranchingAngle, inRange(s.LateralBranchingAngle, 0, math32.Pi)},
		{"apical_dominance", s.ApicalDominance, inRange(s.ApicalDominance, 0, 1)},
		{"bud_light_sensitivity", s.BudLightSensitivity, s.BudLightSensitivity > 0},
		{"branch_self_pruning", s.BranchSelfPruning, s.BranchSelfPruning >= 0},
		{"maximum_shoot_length", s.MaximumShootLength, s.MaximumShootLength > 0},
		{"tropism_angle", s.TropismAngle, inRange(s.TropismAngle, 0, math32.Pi)},
		{"tropism_weight", s.TropismWeight, s.TropismWeight >= 0},
		{"current_direction_weight", s.CurrentDirectionWeight, s.CurrentDirectionWeight >= 0},
		{"optimal_growth_direction_weight", s.OptimalGrowthDirectionWeight, s.OptimalGrowthDirectionWeight >= 0},
		{"bud_perception_angle", s.BudPerceptionAngle, s.BudPerceptionAngle > 0 && s.BudPerceptionAngle <= math32.Pi},
		{"bud_perception_distance_coef", s.BudPerceptionDistanceCoef, s.BudPerceptionDistanceCoef > 0},
		{"occupancy_radius_coef", s.OccupancyRadiusCoef, s.OccupancyRadiusCoef >= 0},
		{"resource_coef", s.ResourceCoef, s.ResourceCoef > 0},
		{"full_light_exposure", s.FullLightExposure, s.FullLightExposure > 0},
		{"shadow_angle", s.ShadowAngle, inRange(s.ShadowAngle, 0, math32.Pi)},
		{"shadow_coef", s.ShadowCoef, s.ShadowCoef >= 0},
		{"shadow_base", s.ShadowBase, s.ShadowBase > 1},
		{"shadow_depth", s.ShadowDepth, s.ShadowDepth >= 0},
		{"base_branch_width", s.BaseBranchWidth, s.BaseBranchWidth > 0},
		{"internode_length", s.InternodeLength, s.InternodeLength > 0},
		{"environment_size", s.EnvironmentSize, s.EnvironmentSize > 0},
		{"environment_points_count", s.EnvironmentPointsCount, s.EnvironmentPointsCount >= 0},
		{"environment_shape", s.EnvironmentShape, s.EnvironmentShape.IsValid()},
		{"iterations_count", s.IterationsCount, s.IterationsCount >= 0},
	}

	for _, c := range checks {
		if !c.valid {
			return errors.New("invalid seed structure").
				WithType(ErrTypeInvalidConfig).
				WithTag("field", c.field).
				WithTag("value", c.value)
		}
	}
	return nil
}

func inRange(v, min, max float32) bool {
	return v >= min && v <= max
}
