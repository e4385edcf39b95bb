package ahrs

// MahonyState is a nonlinear complementary filter with proportional and
// integral feedback of the reference direction error.
// The integral term is kept as an estimate of the gyro bias.
type MahonyState struct {
	State
	KP, KI   float64      // Proportional (rad/s) and integral (rad/s²) gains
	Schedule GainSchedule // Optional, scales KP from the measured motion
	bias     [3]float64   // Gyro bias estimate, rad/s
	ref      *Reference
}

// NewMahony returns a Mahony observer starting at q0 with zero bias.
func NewMahony(q0 Quaternion, kp, ki float64, method Integrator, ref *Reference) *MahonyState {
	if ref == nil {
		ref = DefaultReference()
	}
	return &MahonyState{State: newState(q0, method), KP: kp, KI: ki, ref: ref}
}

// Bias returns the current gyro bias estimate.
func (s *MahonyState) Bias() [3]float64 {
	return s.bias
}

// Reset restarts the attitude at q and clears the bias estimate.
func (s *MahonyState) Reset(q Quaternion) {
	s.State.Reset(q)
	s.bias = [3]float64{}
}

// Predict integrates the bias-corrected gyro rate.
func (s *MahonyState) Predict(gyr [3]float64, dt float64) {
	s.predictAt(gyr, s.rate(gyr, [3]float64{}, 0), dt)
}

// Correct recomputes the latest step from the a-priori attitude with the
// feedback of e = a × v (+ m × w), where v and w are the predicted directions.
func (s *MahonyState) Correct(acc, mag *[3]float64) Fault {
	a, m, f, ok := unitMeasurements(acc, mag)
	if !ok {
		return f
	}

	q := s.prior
	e := Cross(a, s.ref.PredictGravity(q))
	if m != nil {
		w := RotateInverse(q, s.ref.horizontalField(q, *m))
		em := Cross(*m, w)
		e = [3]float64{e[0] + em[0], e[1] + em[1], e[2] + em[2]}
	}

	kp := s.KP
	if s.Schedule != nil {
		kp *= s.Schedule.Factor(s.gyr, *acc)
	}
	if s.KI > 0 {
		for i := range s.bias {
			s.bias[i] -= s.KI * e[i] * s.dt
		}
	}
	s.repropagate(s.rate(s.gyr, e, kp))
	return f
}

// rate returns the corrected body rate ω - b + kp e.
func (s *MahonyState) rate(gyr, e [3]float64, kp float64) (w [3]float64) {
	for i := range w {
		w[i] = gyr[i] - s.bias[i] + kp*e[i]
	}
	return
}
