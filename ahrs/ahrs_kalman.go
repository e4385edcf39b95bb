package ahrs

import (
	"math"

	"github.com/skelterjohn/go.matrix"
)

// KalmanParams tunes a KalmanState.
// Noise vectors hold diagonal entries: one value for every state, one value per
// block (quaternion, bias), or one value per state.
type KalmanParams struct {
	EstimateBias      bool      // Augment the state with a gyro bias
	InitialCovariance []float64 // Initial state variances
	ProcessNoise      []float64 // State variances added per second
	AccNoise          float64   // Variance of each normalized accelerometer component
	MagNoise          float64   // Variance of each normalized magnetometer component
	CheckCovariance   bool      // Report FaultCovariance when the covariance degrades
}

// DefaultKalmanParams returns a tuning suited to a consumer-grade IMU at 100 Hz.
func DefaultKalmanParams() KalmanParams {
	return KalmanParams{
		InitialCovariance: []float64{1e-2, 1e-4},
		ProcessNoise:      []float64{1e-6, 1e-10},
		AccNoise:          1e-2,
		MagNoise:          1e-2,
	}
}

// KalmanState is an extended Kalman filter on the attitude quaternion,
// optionally augmented with the gyro bias.
// State order: W, X, Y, Z, then B1, B2, B3 when estimating bias.
type KalmanState struct {
	State
	M *matrix.DenseMatrix // Covariance matrix of state uncertainty
	N *matrix.DenseMatrix // Covariance matrix of state noise per unit time

	params KalmanParams
	m0     []float64 // initial covariance diagonal, kept for Reset
	bias   [3]float64
	ref    *Reference
}

// NewKalman returns an EKF starting at q0.
func NewKalman(q0 Quaternion, p KalmanParams, method Integrator, ref *Reference) (s *KalmanState, err error) {
	if ref == nil {
		ref = DefaultReference()
	}
	if p.AccNoise <= 0 || p.MagNoise <= 0 {
		return nil, invalidf("measurement noise must be positive, got acc %g mag %g", p.AccNoise, p.MagNoise)
	}
	n := 4
	if p.EstimateBias {
		n = 7
	}
	s = &KalmanState{State: newState(q0, method), params: p, ref: ref}
	if s.m0, err = expandDiagonal("initial covariance", p.InitialCovariance, n); err != nil {
		return nil, err
	}
	nn, err := expandDiagonal("process noise", p.ProcessNoise, n)
	if err != nil {
		return nil, err
	}
	s.M = matrix.Diagonal(s.m0)
	s.N = matrix.Diagonal(nn)
	return s, nil
}

// expandDiagonal spreads v over n diagonal entries.
func expandDiagonal(name string, v []float64, n int) ([]float64, error) {
	d := make([]float64, n)
	switch {
	case len(v) == 1:
		for i := range d {
			d[i] = v[0]
		}
	case len(v) == 2:
		for i := range d {
			if i < 4 {
				d[i] = v[0]
			} else {
				d[i] = v[1]
			}
		}
	case len(v) == n:
		copy(d, v)
	default:
		return nil, invalidf("%s needs 1, 2 or %d values, got %d", name, n, len(v))
	}
	for i, x := range d {
		if x < 0 || math.IsNaN(x) {
			return nil, invalidf("%s entry %d is %g", name, i, x)
		}
	}
	return d, nil
}

func (s *KalmanState) size() int {
	return s.M.Rows()
}

// Reset restarts the attitude at q with the initial covariance and zero bias.
func (s *KalmanState) Reset(q Quaternion) {
	s.State.Reset(q)
	s.bias = [3]float64{}
	s.M = matrix.Diagonal(s.m0)
}

// Bias returns the gyro bias estimate (zero unless EstimateBias is set).
func (s *KalmanState) Bias() [3]float64 {
	return s.bias
}

// Covariance returns a copy of the state covariance.
func (s *KalmanState) Covariance() *matrix.DenseMatrix {
	return s.M.Copy()
}

// QuaternionCovariance returns the 4x4 block of the covariance for W, X, Y, Z.
func (s *KalmanState) QuaternionCovariance() (p [4][4]float64) {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			p[i][j] = s.M.Get(i, j)
		}
	}
	return
}

// RollPitchHeadingUncertainty returns the standard deviations of roll, pitch
// and heading implied by the covariance.
func (s *KalmanState) RollPitchHeadingUncertainty() (droll float64, dpitch float64, dheading float64) {
	return EulerUncertainty(s.q, s.QuaternionCovariance())
}

// Predict performs the prediction phase of the Kalman filter.
func (s *KalmanState) Predict(gyr [3]float64, dt float64) {
	w := [3]float64{gyr[0] - s.bias[0], gyr[1] - s.bias[1], gyr[2] - s.bias[2]}
	f := s.calcJacobianState(w, dt)
	s.predict(w, dt)

	s.M = matrix.Sum(matrix.Product(f, matrix.Product(s.M, f.Transpose())), matrix.Scaled(s.N, dt))
}

// Correct applies the Kalman filter corrections given the normalized
// accelerometer (and magnetometer) directions.
// A singular innovation covariance skips the update and reports FaultSingular.
func (s *KalmanState) Correct(acc, mag *[3]float64) Fault {
	a, m, f, ok := unitMeasurements(acc, mag)
	if !ok {
		return f
	}
	withMag := m != nil

	z := a[:]
	if withMag {
		z = append(z, m[:]...)
	}
	h := s.ref.Predict(s.q, withMag)
	rows := len(z)

	y := matrix.Zeros(rows, 1)
	rr := make([]float64, rows)
	for i := range z {
		y.Set(i, 0, z[i]-h[i])
		rr[i] = s.params.AccNoise
		if i >= 3 {
			rr[i] = s.params.MagNoise
		}
	}
	r := matrix.Diagonal(rr)
	jac := s.calcJacobianMeasurement(withMag)

	ss := matrix.Sum(matrix.Product(jac, matrix.Product(s.M, jac.Transpose())), r)
	m2, err := ss.Inverse()
	if err != nil || !finite(m2) {
		return f | FaultSingular
	}
	kk := matrix.Product(s.M, matrix.Product(jac.Transpose(), m2))
	su := matrix.Product(kk, y)
	if !finite(su) || !finite(kk) {
		return f | FaultSingular
	}

	s.q.W += su.Get(0, 0)
	s.q.X += su.Get(1, 0)
	s.q.Y += su.Get(2, 0)
	s.q.Z += su.Get(3, 0)
	if s.params.EstimateBias {
		s.bias[0] += su.Get(4, 0)
		s.bias[1] += su.Get(5, 0)
		s.bias[2] += su.Get(6, 0)
	}
	s.q = Unit(s.q)

	// Joseph form keeps M symmetric positive semi-definite
	ikh := matrix.Difference(matrix.Eye(s.size()), matrix.Product(kk, jac))
	s.M = matrix.Sum(
		matrix.Product(ikh, matrix.Product(s.M, ikh.Transpose())),
		matrix.Product(kk, matrix.Product(r, kk.Transpose())),
	)
	symmetrize(s.M)

	if s.params.CheckCovariance && !CovarianceOK(s.M) {
		f |= FaultCovariance
	}
	return f
}

func finite(m *matrix.DenseMatrix) bool {
	for i := 0; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			if v := m.Get(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func symmetrize(m *matrix.DenseMatrix) {
	for i := 0; i < m.Rows(); i++ {
		for j := i + 1; j < m.Cols(); j++ {
			v := (m.Get(i, j) + m.Get(j, i)) / 2
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

// calcJacobianState returns ∂x'/∂x for the propagation over dt at the
// bias-corrected rate w, evaluated at the a-priori state.
func (s *KalmanState) calcJacobianState(w [3]float64, dt float64) (jac *matrix.DenseMatrix) {
	w1, w2, w3 := w[0], w[1], w[2]
	e0, e1, e2, e3 := s.q.W, s.q.X, s.q.Y, s.q.Z

	jac = matrix.Eye(s.size())

	// Quaternion block is c*I + k*Ω(w)
	c, k := 1.0, 0.5*dt
	if s.method == IntegratorClosed {
		if ww := Norm3(w); ww > Small {
			sn, cs := math.Sincos(ww * dt / 2)
			c, k = cs, sn/ww
		}
	}
	for i := 0; i < 4; i++ {
		jac.Set(i, i, c)
	}

	//e0' = e0 + 0.5*dt*(-w1*e1 - w2*e2 - w3*e3)
	jac.Set(0, 1, -k*w1) // E0/E1
	jac.Set(0, 2, -k*w2) // E0/E2
	jac.Set(0, 3, -k*w3) // E0/E3
	//e1' = e1 + 0.5*dt*(+w1*e0 + w3*e2 - w2*e3)
	jac.Set(1, 0, +k*w1) // E1/E0
	jac.Set(1, 2, +k*w3) // E1/E2
	jac.Set(1, 3, -k*w2) // E1/E3
	//e2' = e2 + 0.5*dt*(+w2*e0 - w3*e1 + w1*e3)
	jac.Set(2, 0, +k*w2) // E2/E0
	jac.Set(2, 1, -k*w3) // E2/E1
	jac.Set(2, 3, +k*w1) // E2/E3
	//e3' = e3 + 0.5*dt*(+w3*e0 + w2*e1 - w1*e2)
	jac.Set(3, 0, +k*w3) // E3/E0
	jac.Set(3, 1, +k*w2) // E3/E1
	jac.Set(3, 2, -k*w1) // E3/E2

	if !s.params.EstimateBias {
		return
	}

	// w = gyr - b, so ∂/∂b = -0.5*dt*Ξ(e)
	h := 0.5 * dt
	jac.Set(0, 4, +h*e1) // E0/B1
	jac.Set(0, 5, +h*e2) // E0/B2
	jac.Set(0, 6, +h*e3) // E0/B3
	jac.Set(1, 4, -h*e0) // E1/B1
	jac.Set(1, 5, +h*e3) // E1/B2
	jac.Set(1, 6, -h*e2) // E1/B3
	jac.Set(2, 4, -h*e3) // E2/B1
	jac.Set(2, 5, -h*e0) // E2/B2
	jac.Set(2, 6, +h*e1) // E2/B3
	jac.Set(3, 4, +h*e2) // E3/B1
	jac.Set(3, 5, -h*e1) // E3/B2
	jac.Set(3, 6, -h*e0) // E3/B3
	return
}

// calcJacobianMeasurement returns ∂h/∂x at the current state; the bias
// columns are zero.
func (s *KalmanState) calcJacobianMeasurement(withMag bool) (jac *matrix.DenseMatrix) {
	hq := s.ref.Jacobian(s.q, withMag)
	jac = matrix.Zeros(hq.Rows(), s.size())
	for i := 0; i < hq.Rows(); i++ {
		for j := 0; j < 4; j++ {
			jac.Set(i, j, hq.Get(i, j))
		}
	}
	return
}
