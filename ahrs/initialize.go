package ahrs

import (
	"math"

	"github.com/pkg/errors"
)

// AccelToQuaternion estimates the attitude from a single accelerometer sample
// under the default reference, assuming the body is static. Roll and pitch come
// from the gravity direction; yaw is unobservable and set to zero.
func AccelToQuaternion(acc [3]float64) (Quaternion, error) {
	return DefaultReference().AccelToQuaternion(acc)
}

// AccelMagToQuaternion estimates the attitude from one accelerometer and one
// magnetometer sample under the default reference.
func AccelMagToQuaternion(acc, mag [3]float64) (Quaternion, error) {
	return DefaultReference().AccelMagToQuaternion(acc, mag)
}

// AccelToQuaternion returns an attitude that carries the accelerometer
// direction onto r.Gravity. The tilt is found against the z axis, then z is
// carried onto the gravity reference by the shortest arc, so with the default
// reference the yaw is zero.
func (r *Reference) AccelToQuaternion(acc [3]float64) (Quaternion, error) {
	a, err := MakeUnitVector(acc)
	if err != nil {
		return Identity, errors.Wrap(err, "accelerometer")
	}
	roll := math.Atan2(a[1], a[2])
	pitch := math.Atan2(-a[0], math.Hypot(a[1], a[2]))
	c := QuaternionAToB([3]float64{0, 0, 1}, r.Gravity)
	return Unit(Prod(c, ToQuaternion(roll, pitch, 0))), nil
}

// AccelMagToQuaternion builds the attitude with the TRIAD construction.
// The body triad is the accelerometer direction, a × m and their cross product;
// the earth triad is built the same way from the gravity and magnetic
// references, and R(q) carries one onto the other.
func (r *Reference) AccelMagToQuaternion(acc, mag [3]float64) (Quaternion, error) {
	a, err := MakeUnitVector(acc)
	if err != nil {
		return Identity, errors.Wrap(err, "accelerometer")
	}
	m, err := MakeUnitVector(mag)
	if err != nil {
		return Identity, errors.Wrap(err, "magnetometer")
	}
	bw, err := MakePerpendicular(a, m)
	if err != nil {
		return Identity, errors.Wrap(err, "magnetometer parallel to gravity")
	}
	ew, err := MakePerpendicular(r.Gravity, r.Magnetic)
	if err != nil {
		return Identity, invalidf("magnetic reference %v is parallel to gravity", r.Magnetic)
	}

	tb := [3][3]float64{a, bw, Cross(a, bw)}
	te := [3][3]float64{r.Gravity, ew, Cross(r.Gravity, ew)}

	// R = Σ te_k tb_kᵀ
	var rm [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				rm[i][j] += te[k][i] * tb[k][j]
			}
		}
	}
	return FromRotMat(rm), nil
}
