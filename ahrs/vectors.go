package ahrs

import (
	"math"

	"github.com/pkg/errors"
)

// Norm3 returns the Euclidean norm of v.
func Norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Dot3 returns the inner product of u and v.
func Dot3(u, v [3]float64) float64 {
	return u[0]*v[0] + u[1]*v[1] + u[2]*v[2]
}

// Cross returns u × v.
func Cross(u, v [3]float64) [3]float64 {
	return [3]float64{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
}

// Skew returns the skew-symmetric matrix [v]× such that [v]× u = v × u.
func Skew(v [3]float64) [3][3]float64 {
	return [3][3]float64{
		{0, -v[2], v[1]},
		{v[2], 0, -v[0]},
		{-v[1], v[0], 0},
	}
}

func scale3(v [3]float64, k float64) [3]float64 {
	return [3]float64{v[0] * k, v[1] * k, v[2] * k}
}

// MakeUnitVector returns v scaled to unit length.
// It fails with ErrDegenerateMeasurement when |v| is below VecEpsilon.
func MakeUnitVector(v [3]float64) (u [3]float64, err error) {
	vv := Norm3(v)
	if vv < VecEpsilon || math.IsNaN(vv) || math.IsInf(vv, 0) {
		return v, errors.Wrapf(ErrDegenerateMeasurement, "vector %v has norm %g", v, vv)
	}
	return scale3(v, 1/vv), nil
}

// MakeOrthogonal returns the component of u orthogonal to the unit vector v.
func MakeOrthogonal(u, v [3]float64) [3]float64 {
	d := Dot3(u, v)
	return [3]float64{u[0] - d*v[0], u[1] - d*v[1], u[2] - d*v[2]}
}

// MakePerpendicular returns the unit vector perpendicular to both u and v.
// It fails when u and v are collinear.
func MakePerpendicular(u, v [3]float64) ([3]float64, error) {
	return MakeUnitVector(Cross(u, v))
}
