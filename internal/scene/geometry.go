package scene

import (
	"math"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
)

type mat3 [3][3]float64

func sub(a, b animator.Vec3) animator.Vec3 {
	return animator.Vec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

func scale(a animator.Vec3, s float64) animator.Vec3 {
	return animator.Vec3{X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

func dot(a, b animator.Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func cross(a, b animator.Vec3) animator.Vec3 {
	return animator.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func length(a animator.Vec3) float64 {
	return math.Sqrt(dot(a, a))
}

// TrackRotation returns the rotation that points an object's -Z axis from
// from toward target, keeping its Y axis as close to world +Z as possible.
// When the direction is vertical, world +Y is used as the up reference.
func TrackRotation(from, target animator.Vec3) Euler {
	d := sub(target, from)
	l := length(d)
	if l == 0 {
		return Euler{}
	}
	z := scale(d, -1/l)

	y := orthonormal(animator.Vec3{Z: 1}, z)
	if length(y) < 1e-9 {
		y = orthonormal(animator.Vec3{Y: 1}, z)
	}
	x := cross(y, z)

	m := mat3{
		{x.X, y.X, z.X},
		{x.Y, y.Y, z.Y},
		{x.Z, y.Z, z.Z},
	}
	return matrixToEuler(m)
}

// orthonormal returns up with its component along z removed, normalized, or
// the zero vector when up is parallel to z.
func orthonormal(up, z animator.Vec3) animator.Vec3 {
	v := sub(up, scale(z, dot(up, z)))
	l := length(v)
	if l < 1e-9 {
		return animator.Vec3{}
	}
	return scale(v, 1/l)
}

// matrixToEuler decomposes m = Rz·Ry·Rx.
func matrixToEuler(m mat3) Euler {
	sy := -m[2][0]
	if sy >= 1-1e-12 || sy <= -1+1e-12 {
		return Euler{
			X: math.Atan2(-m[1][2], m[1][1]),
			Y: math.Copysign(math.Pi/2, sy),
		}
	}
	return Euler{
		X: math.Atan2(m[2][1], m[2][2]),
		Y: math.Asin(sy),
		Z: math.Atan2(m[1][0], m[0][0]),
	}
}

// GradientFactor is the ring material's ramp input for a generated texture
// coordinate u in [0, 1]: the cosine of u.
func GradientFactor(u float64) float64 {
	return math.Cos(u)
}

// GeneratedCoord maps v from the object's bounding range [lo, hi] to [0, 1].
func GeneratedCoord(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}
