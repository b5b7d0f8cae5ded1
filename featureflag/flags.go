package featureflag

type Flag string

const (
	FlagSmoothSkeleton       Flag = "SMOOTH_SKELETON"
	FlagHalfSpaceEnvironment Flag = "HALF_SPACE_ENVIRONMENT"
	FlagDisableShadow        Flag = "DISABLE_SHADOW"
)
