package ahrs

import (
	"math"

	"github.com/skelterjohn/go.matrix"
)

// Reference holds the earth frame unit reference directions observed by the
// accelerometer and magnetometer. A Reference is never modified after it is
// built, so one value can be shared by any number of concurrent observers.
type Reference struct {
	Gravity  [3]float64
	Magnetic [3]float64
}

// DefaultReference returns gravity up and the magnetic field pointing north
// with no dip.
func DefaultReference() *Reference {
	return &Reference{
		Gravity:  [3]float64{0, 0, 1},
		Magnetic: [3]float64{1, 0, 0},
	}
}

// ReferenceFromDip returns the default gravity reference and a magnetic reference
// pointing north and dipping dip radians below the horizon.
func ReferenceFromDip(dip float64) *Reference {
	s, c := math.Sincos(dip)
	return &Reference{
		Gravity:  [3]float64{0, 0, 1},
		Magnetic: [3]float64{c, 0, -s},
	}
}

// NewReference normalizes the given gravity and magnetic directions.
// Both must be non-zero and not collinear.
func NewReference(gravity, magnetic [3]float64) (*Reference, error) {
	g, err := MakeUnitVector(gravity)
	if err != nil {
		return nil, invalidf("gravity reference: %v", err)
	}
	m, err := MakeUnitVector(magnetic)
	if err != nil {
		return nil, invalidf("magnetic reference: %v", err)
	}
	if _, err := MakePerpendicular(g, m); err != nil {
		return nil, invalidf("magnetic reference %v is parallel to gravity", magnetic)
	}
	return &Reference{Gravity: g, Magnetic: m}, nil
}

// PredictGravity returns the expected body frame accelerometer direction for attitude q.
func (r *Reference) PredictGravity(q Quaternion) [3]float64 {
	return RotateInverse(q, r.Gravity)
}

// PredictMagnetic returns the expected body frame magnetometer direction for attitude q.
func (r *Reference) PredictMagnetic(q Quaternion) [3]float64 {
	return RotateInverse(q, r.Magnetic)
}

// Predict returns the stacked predicted measurement h(q):
// the gravity direction, followed by the magnetic direction if withMag.
func (r *Reference) Predict(q Quaternion, withMag bool) []float64 {
	g := r.PredictGravity(q)
	if !withMag {
		return g[:]
	}
	m := r.PredictMagnetic(q)
	return []float64{g[0], g[1], g[2], m[0], m[1], m[2]}
}

// Jacobian returns ∂h/∂q, the 3x4 (or 6x4 if withMag) derivative of Predict
// with respect to the quaternion components W, X, Y, Z.
func (r *Reference) Jacobian(q Quaternion, withMag bool) (jac *matrix.DenseMatrix) {
	rows := 3
	if withMag {
		rows = 6
	}
	jac = matrix.Zeros(rows, 4)
	setRotateInverseJacobian(jac, 0, q, r.Gravity)
	if withMag {
		setRotateInverseJacobian(jac, 3, q, r.Magnetic)
	}
	return
}

// setRotateInverseJacobian fills rows row0..row0+2 of jac with ∂(q*⊗v⊗q)/∂q.
func setRotateInverseJacobian(jac *matrix.DenseMatrix, row0 int, q Quaternion, v [3]float64) {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	v1, v2, v3 := v[0], v[1], v[2]

	//h1 = (w*w+x*x-y*y-z*z)*v1 + 2*(x*y+w*z)*v2 + 2*(x*z-w*y)*v3
	jac.Set(row0, 0, 2*(+v1*w+v2*z-v3*y)) // H1/W
	jac.Set(row0, 1, 2*(+v1*x+v2*y+v3*z)) // H1/X
	jac.Set(row0, 2, 2*(-v1*y+v2*x-v3*w)) // H1/Y
	jac.Set(row0, 3, 2*(-v1*z+v2*w+v3*x)) // H1/Z

	//h2 = 2*(x*y-w*z)*v1 + (w*w-x*x+y*y-z*z)*v2 + 2*(y*z+w*x)*v3
	jac.Set(row0+1, 0, 2*(-v1*z+v2*w+v3*x)) // H2/W
	jac.Set(row0+1, 1, 2*(+v1*y-v2*x+v3*w)) // H2/X
	jac.Set(row0+1, 2, 2*(+v1*x+v2*y+v3*z)) // H2/Y
	jac.Set(row0+1, 3, 2*(-v1*w-v2*z+v3*y)) // H2/Z

	//h3 = 2*(x*z+w*y)*v1 + 2*(y*z-w*x)*v2 + (w*w-x*x-y*y+z*z)*v3
	jac.Set(row0+2, 0, 2*(+v1*y-v2*x+v3*w)) // H3/W
	jac.Set(row0+2, 1, 2*(+v1*z-v2*w-v3*x)) // H3/X
	jac.Set(row0+2, 2, 2*(+v1*w+v2*z-v3*y)) // H3/Y
	jac.Set(row0+2, 3, 2*(+v1*x+v2*y+v3*z)) // H3/Z
}

// horizontalField returns the earth frame magnetic reference that matches the
// body frame field m at attitude q: the measured component along gravity is
// kept, and the horizontal part is turned onto the horizontal of r.Magnetic.
func (r *Reference) horizontalField(q Quaternion, m [3]float64) [3]float64 {
	g := r.Gravity
	h := Rotate(q, m)
	hv := Dot3(h, g)
	hh := Norm3(MakeOrthogonal(h, g))
	n, err := MakeUnitVector(MakeOrthogonal(r.Magnetic, g))
	if err != nil {
		return h
	}
	return [3]float64{hh*n[0] + hv*g[0], hh*n[1] + hv*g[1], hh*n[2] + hv*g[2]}
}
