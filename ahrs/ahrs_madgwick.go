package ahrs

// Default Madgwick gains for IMU and MARG input.
const (
	MadgwickBetaIMU  = 0.033
	MadgwickBetaMARG = 0.041
)

// MadgwickState is a gradient descent attitude observer.
// Each correction steps the quaternion derivative against the normalized
// gradient of the misfit between measured and predicted reference directions.
type MadgwickState struct {
	State
	Beta     float64      // Gain on the normalized gradient, rad/s
	Schedule GainSchedule // Optional, scales Beta from the measured motion
	ref      *Reference
}

// NewMadgwick returns a Madgwick observer starting at q0.
func NewMadgwick(q0 Quaternion, beta float64, method Integrator, ref *Reference) *MadgwickState {
	if ref == nil {
		ref = DefaultReference()
	}
	return &MadgwickState{State: newState(q0, method), Beta: beta, ref: ref}
}

// Predict integrates the gyro rate.
func (s *MadgwickState) Predict(gyr [3]float64, dt float64) {
	s.predict(gyr, dt)
}

// Correct recomputes the latest step with the gradient correction evaluated at
// the a-priori attitude. The magnetic reference is learned from the measurement
// as a field along the horizontal of the reference with the measured dip.
func (s *MadgwickState) Correct(acc, mag *[3]float64) Fault {
	a, m, f, ok := unitMeasurements(acc, mag)
	if !ok {
		return f
	}

	q := s.prior
	grad := madgwickGradient(q, s.ref.Gravity, a)
	if m != nil {
		grad = Sum(grad, madgwickGradient(q, s.ref.horizontalField(q, *m), *m))
	}
	gg := Norm(grad)
	if gg < Small {
		return f
	}

	beta := s.Beta
	if s.Schedule != nil {
		beta *= s.Schedule.Factor(s.gyr, *acc)
	}
	s.descend(Scale(grad, -beta/gg))
	return f
}

// madgwickGradient returns Jᵀf, where f is the misfit between the body frame
// measurement u and the earth frame direction d seen from attitude q, and J
// its Jacobian, both written for unit q.
func madgwickGradient(q Quaternion, d, u [3]float64) Quaternion {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	dx, dy, dz := d[0], d[1], d[2]

	f1 := 2*dx*(0.5-y*y-z*z) + 2*dy*(w*z+x*y) + 2*dz*(x*z-w*y) - u[0]
	f2 := 2*dx*(x*y-w*z) + 2*dy*(0.5-x*x-z*z) + 2*dz*(w*x+y*z) - u[1]
	f3 := 2*dx*(w*y+x*z) + 2*dy*(y*z-w*x) + 2*dz*(0.5-x*x-y*y) - u[2]

	// J rows are ∂f1, ∂f2, ∂f3 with respect to W, X, Y, Z
	j11, j12, j13, j14 := 2*dy*z-2*dz*y, 2*dy*y+2*dz*z, -4*dx*y+2*dy*x-2*dz*w, -4*dx*z+2*dy*w+2*dz*x
	j21, j22, j23, j24 := -2*dx*z+2*dz*x, 2*dx*y-4*dy*x+2*dz*w, 2*dx*x+2*dz*z, -2*dx*w-4*dy*z+2*dz*y
	j31, j32, j33, j34 := 2*dx*y-2*dy*x, 2*dx*z-2*dy*w-4*dz*x, 2*dx*w+2*dy*z-4*dz*y, 2*dx*x+2*dy*y

	return Quaternion{
		W: j11*f1 + j21*f2 + j31*f3,
		X: j12*f1 + j22*f2 + j32*f3,
		Y: j13*f1 + j23*f2 + j33*f3,
		Z: j14*f1 + j24*f2 + j34*f3,
	}
}
