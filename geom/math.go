package geom

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon is the length under which a vector is treated as degenerate.
const Epsilon = float32(1e-6)

var (
	Up   = mgl32.Vec3{0, 1, 0}
	Down = mgl32.Vec3{0, -1, 0}
)

func EqualWithEpsilon(a float32, b float32, epsilon float32) bool {
	return math32.Abs(a-b) <= epsilon
}

func InRangeWithEpsilon(value float32, min float32, max float32, epsilon float32) bool {
	return value+epsilon >= min && value-epsilon <= max
}

// RelativeEqual reports whether a and b agree within tolerance relative to the
// largest magnitude of the two. Values close to zero fall back to an absolute
// comparison.
func RelativeEqual(a, b, tolerance float32) bool {
	scale := math32.Max(math32.Abs(a), math32.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return math32.Abs(a-b) <= tolerance*scale
}

func IsDegenerate(v mgl32.Vec3) bool {
	return v.LenSqr() < Epsilon*Epsilon
}

// NormalizeOr returns v normalized, or fallback when v has no usable length.
func NormalizeOr(v mgl32.Vec3, fallback mgl32.Vec3) mgl32.Vec3 {
	if IsDegenerate(v) {
		return fallback
	}
	return v.Normalize()
}

// SafeNormalize normalizes v and substitutes the up axis for a zero vector.
func SafeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	return NormalizeOr(v, Up)
}

func Lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func LerpScalar(a, b, t float32) float32 {
	return a + (b-a)*t
}

// QuadraticBezier evaluates the quadratic curve through p0, p1, p2 with de
// Casteljau's construction.
func QuadraticBezier(p0, p1, p2 mgl32.Vec3, t float32) mgl32.Vec3 {
	a := Lerp(p0, p1, t)
	b := Lerp(p1, p2, t)
	return Lerp(a, b, t)
}

// ProjectOntoPlane removes from v its component along the plane normal n.
// n does not need to be normalized; a degenerate normal leaves v untouched.
func ProjectOntoPlane(v mgl32.Vec3, n mgl32.Vec3) mgl32.Vec3 {
	if IsDegenerate(n) {
		return v
	}
	n = n.Normalize()
	return v.Sub(n.Mul(v.Dot(n)))
}

// InCone reports whether offset lies inside the cone with the given unit axis,
// half-angle and length. Zero offsets are never inside.
func InCone(offset mgl32.Vec3, axis mgl32.Vec3, halfAngle float32, length float32) bool {
	distSqr := offset.LenSqr()
	if distSqr < Epsilon*Epsilon || distSqr > length*length {
		return false
	}
	return axis.Dot(offset) >= math32.Sqrt(distSqr)*math32.Cos(halfAngle)
}

// RotationFromUp returns the rotation that maps the up axis onto dir.
func RotationFromUp(dir mgl32.Vec3) mgl32.Quat {
	return mgl32.QuatBetweenVectors(Up, SafeNormalize(dir))
}

// RandomInCone draws a direction uniformly distributed over the spherical cap of
// the given half-angle around axis. Exactly two values are drawn from rng.
func RandomInCone(rng *rand.Rand, axis mgl32.Vec3, halfAngle float32) mgl32.Vec3 {
	u := rng.Float32()
	v := rng.Float32()

	cosTheta := 1 - u*(1-math32.Cos(halfAngle))
	sinTheta := math32.Sqrt(math32.Max(0, 1-cosTheta*cosTheta))
	sinPhi, cosPhi := math32.Sincos(2 * math32.Pi * v)

	local := mgl32.Vec3{sinTheta * cosPhi, cosTheta, sinTheta * sinPhi}
	return SafeNormalize(RotationFromUp(axis).Rotate(local))
}

// ExponentialFalloff is coef * base^(-distance). base must be greater than one
// for the value to decay with distance.
func ExponentialFalloff(coef, base, distance float32) float32 {
	return coef * math32.Pow(base, -distance)
}
