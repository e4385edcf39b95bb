package ahrs

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is a Hamilton quaternion W + Xi + Yj + Zk.
// Attitudes are unit quaternions rotating body frame vectors into the earth frame.
type Quaternion struct {
	W, X, Y, Z float64
}

// Identity is the quaternion representing no rotation.
var Identity = Quaternion{W: 1}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

// Vec returns the vector part of q.
func (q Quaternion) Vec() [3]float64 {
	return [3]float64{q.X, q.Y, q.Z}
}

// Prod returns the Hamilton product of the quaternions, left to right.
func Prod(qs ...Quaternion) (r Quaternion) {
	r = Identity
	for _, q := range qs {
		r = Quaternion{
			W: r.W*q.W - r.X*q.X - r.Y*q.Y - r.Z*q.Z,
			X: r.W*q.X + r.X*q.W + r.Y*q.Z - r.Z*q.Y,
			Y: r.W*q.Y - r.X*q.Z + r.Y*q.W + r.Z*q.X,
			Z: r.W*q.Z + r.X*q.Y - r.Y*q.X + r.Z*q.W,
		}
	}
	return
}

// Sum returns the componentwise sum of the quaternions.
func Sum(qs ...Quaternion) (r Quaternion) {
	for _, q := range qs {
		r.W += q.W
		r.X += q.X
		r.Y += q.Y
		r.Z += q.Z
	}
	return
}

// Scale returns q multiplied by the scalar k.
func Scale(q Quaternion, k float64) Quaternion {
	return Quaternion{q.W * k, q.X * k, q.Y * k, q.Z * k}
}

// Conj returns the conjugate of q.
func Conj(q Quaternion) Quaternion {
	return Quaternion{q.W, -q.X, -q.Y, -q.Z}
}

// Dot returns the four-dimensional inner product of p and q.
func Dot(p, q Quaternion) float64 {
	return p.W*q.W + p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Norm returns the Euclidean norm of q.
func Norm(q Quaternion) float64 {
	return math.Sqrt(Dot(q, q))
}

// Unit returns q scaled to unit norm.
// A quaternion with norm below QuatEpsilon (or not finite) is replaced by Identity.
func Unit(q Quaternion) Quaternion {
	qq := Norm(q)
	if qq < QuatEpsilon || math.IsNaN(qq) || math.IsInf(qq, 0) {
		return Identity
	}
	return Scale(q, 1/qq)
}

// Exp returns the quaternion exponential of q.
func Exp(q Quaternion) Quaternion {
	return fromNumber(quat.Exp(q.number()))
}

// Log returns the quaternion logarithm of q.
func Log(q Quaternion) Quaternion {
	return fromNumber(quat.Log(q.number()))
}

// FromRotationVector returns the unit quaternion rotating by |v| radians about v,
// i.e. exp(½ v).
func FromRotationVector(v [3]float64) Quaternion {
	return Exp(Quaternion{X: v[0] / 2, Y: v[1] / 2, Z: v[2] / 2})
}

// RotationVector returns the rotation vector (axis times angle, angle in [0, π]) of q.
func RotationVector(q Quaternion) [3]float64 {
	q = Unit(q)
	if q.W < 0 {
		q = Scale(q, -1)
	}
	l := Log(q)
	return [3]float64{2 * l.X, 2 * l.Y, 2 * l.Z}
}

// Rotate returns q⊗v⊗q*, the body frame vector v expressed in the earth frame.
func Rotate(q Quaternion, v [3]float64) [3]float64 {
	return Prod(q, Quaternion{X: v[0], Y: v[1], Z: v[2]}, Conj(q)).Vec()
}

// RotateInverse returns q*⊗v⊗q, the earth frame vector v expressed in the body frame.
func RotateInverse(q Quaternion, v [3]float64) [3]float64 {
	return Prod(Conj(q), Quaternion{X: v[0], Y: v[1], Z: v[2]}, q).Vec()
}

// RotMat returns the rotation matrix of the unit quaternion q, such that
// v_earth = R v_body.
func RotMat(q Quaternion) (r [3][3]float64) {
	q = Unit(q)
	w, x, y, z := q.W, q.X, q.Y, q.Z
	r[0][0] = w*w + x*x - y*y - z*z
	r[0][1] = 2 * (x*y - w*z)
	r[0][2] = 2 * (x*z + w*y)
	r[1][0] = 2 * (x*y + w*z)
	r[1][1] = w*w - x*x + y*y - z*z
	r[1][2] = 2 * (y*z - w*x)
	r[2][0] = 2 * (x*z - w*y)
	r[2][1] = 2 * (y*z + w*x)
	r[2][2] = w*w - x*x - y*y + z*z
	return
}

// FromRotMat returns the unit quaternion (with W >= 0) of the rotation matrix r,
// using Shepperd's method to pick the best conditioned pivot.
func FromRotMat(r [3][3]float64) Quaternion {
	var q Quaternion
	tr := r[0][0] + r[1][1] + r[2][2]
	switch {
	case tr > 0:
		s := 2 * math.Sqrt(1+tr)
		q = Quaternion{s / 4, (r[2][1] - r[1][2]) / s, (r[0][2] - r[2][0]) / s, (r[1][0] - r[0][1]) / s}
	case r[0][0] > r[1][1] && r[0][0] > r[2][2]:
		s := 2 * math.Sqrt(1+r[0][0]-r[1][1]-r[2][2])
		q = Quaternion{(r[2][1] - r[1][2]) / s, s / 4, (r[0][1] + r[1][0]) / s, (r[0][2] + r[2][0]) / s}
	case r[1][1] > r[2][2]:
		s := 2 * math.Sqrt(1+r[1][1]-r[0][0]-r[2][2])
		q = Quaternion{(r[0][2] - r[2][0]) / s, (r[0][1] + r[1][0]) / s, s / 4, (r[1][2] + r[2][1]) / s}
	default:
		s := 2 * math.Sqrt(1+r[2][2]-r[0][0]-r[1][1])
		q = Quaternion{(r[1][0] - r[0][1]) / s, (r[0][2] + r[2][0]) / s, (r[1][2] + r[2][1]) / s, s / 4}
	}
	if q.W < 0 {
		q = Scale(q, -1)
	}
	return Unit(q)
}

// AxisAngle returns the unit rotation axis and the angle in [0, π] of q.
// For a rotation too small to define an axis, it returns (1,0,0) and 0.
func AxisAngle(q Quaternion) (axis [3]float64, angle float64) {
	q = Unit(q)
	if q.W < 0 {
		q = Scale(q, -1)
	}
	v := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if v < Small {
		return [3]float64{1, 0, 0}, 0
	}
	angle = 2 * math.Atan2(v, q.W)
	axis = [3]float64{q.X / v, q.Y / v, q.Z / v}
	return
}

// FromAxisAngle returns the unit quaternion rotating by angle radians about axis.
// A zero axis gives Identity.
func FromAxisAngle(axis [3]float64, angle float64) Quaternion {
	u, err := MakeUnitVector(axis)
	if err != nil {
		return Identity
	}
	s, c := math.Sincos(angle / 2)
	return Quaternion{c, s * u[0], s * u[1], s * u[2]}
}

// ToQuaternion calculates the quaternion corresponding to the
// Tait-Bryan (ZYX) angles roll phi, pitch theta, yaw psi.
func ToQuaternion(phi, theta, psi float64) Quaternion {
	sphi, cphi := math.Sincos(phi / 2)
	stheta, ctheta := math.Sincos(theta / 2)
	spsi, cpsi := math.Sincos(psi / 2)

	return Quaternion{
		W: cphi*ctheta*cpsi + sphi*stheta*spsi,
		X: sphi*ctheta*cpsi - cphi*stheta*spsi,
		Y: cphi*stheta*cpsi + sphi*ctheta*spsi,
		Z: cphi*ctheta*spsi - sphi*stheta*cpsi,
	}
}

// FromQuaternion calculates the Tait-Bryan (ZYX) angles roll phi, pitch theta,
// yaw psi corresponding to the quaternion.
func FromQuaternion(q Quaternion) (phi, theta, psi float64) {
	q = Unit(q)
	w, x, y, z := q.W, q.X, q.Y, q.Z
	phi = math.Atan2(2*(w*x+y*z), w*w-x*x-y*y+z*z)
	theta = math.Asin(math.Max(-1, math.Min(1, 2*(w*y-x*z))))
	psi = math.Atan2(2*(w*z+x*y), w*w+x*x-y*y-z*z)
	return
}

// EulerUncertainty returns the standard deviations of roll, pitch and yaw
// given the 4x4 covariance p of the quaternion q, linearizing FromQuaternion at q.
func EulerUncertainty(q Quaternion, p [4][4]float64) (dphi, dtheta, dpsi float64) {
	q = Unit(q)
	w, x, y, z := q.W, q.X, q.Y, q.Z

	atan2Grad := func(a, b float64, da, db [4]float64) (g [4]float64) {
		denom := a*a + b*b
		if denom < Small {
			return
		}
		for i := range g {
			g[i] = (b*da[i] - a*db[i]) / denom
		}
		return
	}

	gphi := atan2Grad(2*(w*x+y*z), w*w-x*x-y*y+z*z,
		[4]float64{2 * x, 2 * w, 2 * z, 2 * y},
		[4]float64{2 * w, -2 * x, -2 * y, 2 * z})
	gpsi := atan2Grad(2*(w*z+x*y), w*w+x*x-y*y-z*z,
		[4]float64{2 * z, 2 * y, 2 * x, 2 * w},
		[4]float64{2 * w, 2 * x, -2 * y, -2 * z})

	// Pitch is asin(2(wy-xz)/|q|²), differentiated at |q| = 1
	var gtheta [4]float64
	s := 2 * (w*y - x*z)
	if c := 1 - s*s; c > Small {
		r := 2 / math.Sqrt(c)
		gtheta = [4]float64{(y - s*w) * r, (-z - s*x) * r, (w - s*y) * r, (-x - s*z) * r}
	} else {
		dtheta = math.Sqrt(Big)
	}

	quadForm := func(g [4]float64) (v float64) {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				v += g[i] * p[i][j] * g[j]
			}
		}
		return math.Sqrt(math.Max(v, 0))
	}

	dphi = quadForm(gphi)
	if dtheta == 0 {
		dtheta = quadForm(gtheta)
	}
	dpsi = quadForm(gpsi)
	return
}

// AngleBetween returns the angle in radians of the rotation taking p to q,
// treating q and -q as the same attitude.
func AngleBetween(p, q Quaternion) float64 {
	d := Prod(Conj(Unit(p)), Unit(q))
	return 2 * math.Atan2(math.Sqrt(d.X*d.X+d.Y*d.Y+d.Z*d.Z), math.Abs(d.W))
}

// QuaternionAToB returns the shortest-arc unit quaternion that rotates
// the direction of a into the direction of b.
func QuaternionAToB(a, b [3]float64) Quaternion {
	ua, erra := MakeUnitVector(a)
	ub, errb := MakeUnitVector(b)
	if erra != nil || errb != nil {
		return Identity
	}
	d := Dot3(ua, ub)
	if d < -1+Small {
		// Opposite vectors: rotate by Pi about any axis perpendicular to a
		p := [3]float64{1, 0, 0}
		if math.Abs(ua[0]) > 0.9 {
			p = [3]float64{0, 1, 0}
		}
		ax, _ := MakePerpendicular(ua, p)
		return Quaternion{X: ax[0], Y: ax[1], Z: ax[2]}
	}
	c := Cross(ua, ub)
	return Unit(Quaternion{1 + d, c[0], c[1], c[2]})
}
