package ahrs

import "math"

// State holds the attitude shared by every observer: the current estimate and
// the estimate before the latest propagation, so that a correction can revise it.
// Observers embed State.
type State struct {
	q      Quaternion // Quaternion rotating body frame to earth frame
	prior  Quaternion // q before the latest Predict
	gyr    [3]float64 // Gyro rate used by the latest Predict, rad/s
	dt     float64    // Step used by the latest Predict, s
	method Integrator // How the gyro kinematics are integrated
}

func newState(q Quaternion, method Integrator) State {
	q = Unit(q)
	return State{q: q, prior: q, method: method}
}

// Quaternion returns the current attitude estimate.
func (s *State) Quaternion() Quaternion {
	return s.q
}

// Reset restarts the attitude at q.
func (s *State) Reset(q Quaternion) {
	*s = newState(q, s.method)
}

// RollPitchHeading returns the current attitude as ZYX Euler angles in radians.
// Heading is measured clockwise from magnetic north in [0, 2π).
func (s *State) RollPitchHeading() (roll float64, pitch float64, heading float64) {
	roll, pitch, yaw := FromQuaternion(s.q)
	heading = math.Mod(2*Pi-yaw, 2*Pi)
	return
}

// predict records the a-priori state and integrates the body rate w over dt.
func (s *State) predict(w [3]float64, dt float64) {
	s.predictAt(w, w, dt)
}

// predictAt records the gyro sample gyr but integrates the rate w.
func (s *State) predictAt(gyr, w [3]float64, dt float64) {
	s.prior = s.q
	s.gyr = gyr
	s.dt = dt
	s.q = integrate(s.prior, w, dt, s.method)
}

// repropagate replaces the latest propagation with one at the corrected rate w.
func (s *State) repropagate(w [3]float64) {
	s.q = integrate(s.prior, w, s.dt, s.method)
}

// descend replaces the latest propagation with one whose quaternion derivative
// has the extra term c.
func (s *State) descend(c Quaternion) {
	if s.method == IntegratorEuler {
		s.q = Unit(Sum(s.prior, Scale(Sum(qDot(s.prior, s.gyr), c), s.dt)))
		return
	}
	s.q = Unit(Sum(integrate(s.prior, s.gyr, s.dt, s.method), Scale(c, s.dt)))
}

// unitMeasurements normalizes the reference measurements for a correction.
// ok is false when no correction can be made; mag is nil when the
// magnetometer cannot be used for this step. A magnetometer sample without an
// accelerometer sample cannot be used and is reported as FaultDegenerateMag.
func unitMeasurements(acc, mag *[3]float64) (a [3]float64, m *[3]float64, f Fault, ok bool) {
	if acc == nil {
		if mag != nil {
			f = FaultDegenerateMag
		}
		return
	}
	a, err := MakeUnitVector(*acc)
	if err != nil {
		return a, nil, FaultDegenerateAcc, false
	}
	ok = true
	if mag == nil {
		return
	}
	mm, err := MakeUnitVector(*mag)
	if err != nil || Norm3(Cross(a, mm)) < VecEpsilon {
		f |= FaultDegenerateMag
		return
	}
	m = &mm
	return
}
