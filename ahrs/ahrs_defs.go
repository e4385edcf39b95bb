// Package ahrs implements recursive attitude estimators (an extended Kalman
// filter and the Madgwick and Mahony explicit observers) operating on a unit
// quaternion, based on gyro, accelerometer and (optionally) magnetometer input.
//
// Earth frame is inertial: 1 is magnetic north; 2 is west; 3 is up.
// Body frame is fixed to the sensor.
// The state quaternion rotates body frame vectors into the earth frame.
package ahrs

import "math"

const (
	Pi    = math.Pi
	Small = 1e-9
	Big   = 1e9
	Deg   = Pi / 180

	// QuatEpsilon is the smallest quaternion norm that can be normalized.
	QuatEpsilon = 1e-12
	// VecEpsilon is the smallest reference vector norm considered a valid measurement.
	VecEpsilon = 1e-9
	// MMDecay is the exponential decay constant for the motion variance accumulators.
	MMDecay = 1 - 1.0/50
)

// Measurement holds one sample of sensor readings.
// Acc and Mag may be nil when that sensor is unavailable for the sample.
type Measurement struct {
	Gyr [3]float64  // Angular rate, rad/s, body frame
	Acc *[3]float64 // Specific force, any unit, body frame
	Mag *[3]float64 // Magnetic field, any unit, body frame
}

// Fault records recoverable numerical problems for a single step.
// Several faults can be set at once.
type Fault uint8

const (
	FaultDegenerateAcc Fault = 1 << iota // accelerometer norm too small, correction skipped
	FaultDegenerateMag                   // magnetometer norm too small or parallel to gravity, mag term skipped
	FaultSingular                        // innovation covariance not invertible, update skipped
	FaultCovariance                      // covariance lost symmetry or positive semi-definiteness
)

// Observer is a recursive attitude estimator.
// Predict propagates the state with a gyro sample over dt seconds.
// Correct revises the most recent propagation with the reference measurements;
// a nil acc or mag means that sensor is unavailable. The magnetometer is only
// used together with the accelerometer; mag without acc is FaultDegenerateMag.
type Observer interface {
	Predict(gyr [3]float64, dt float64)
	Correct(acc, mag *[3]float64) Fault
	Quaternion() Quaternion
	Reset(q Quaternion)
}

// Step runs one predict/correct cycle of o with the measurement m.
func Step(o Observer, m *Measurement, dt float64) (f Fault) {
	o.Predict(m.Gyr, dt)
	if m.Acc == nil && m.Mag == nil {
		return
	}
	return o.Correct(m.Acc, m.Mag)
}

// Integrator selects how the gyro kinematics q' = ½ q⊗ω are integrated over a step.
type Integrator int

const (
	IntegratorEuler  Integrator = iota // first order, then renormalized
	IntegratorRK4                      // fourth order Runge-Kutta, then renormalized
	IntegratorClosed                   // exact exponential for a rate constant over the step
)

var integratorNames = map[Integrator]string{
	IntegratorEuler:  "euler",
	IntegratorRK4:    "rk4",
	IntegratorClosed: "closed",
}

func (i Integrator) String() string {
	if s, ok := integratorNames[i]; ok {
		return s
	}
	return "unknown"
}

// integrate advances q by the body rate w over dt.
func integrate(q Quaternion, w [3]float64, dt float64, method Integrator) Quaternion {
	switch method {
	case IntegratorRK4:
		k1 := qDot(q, w)
		k2 := qDot(Sum(q, Scale(k1, dt/2)), w)
		k3 := qDot(Sum(q, Scale(k2, dt/2)), w)
		k4 := qDot(Sum(q, Scale(k3, dt)), w)
		d := Sum(k1, Scale(k2, 2), Scale(k3, 2), k4)
		return Unit(Sum(q, Scale(d, dt/6)))
	case IntegratorClosed:
		return Unit(Prod(q, FromRotationVector([3]float64{w[0] * dt, w[1] * dt, w[2] * dt})))
	default:
		return Unit(Sum(q, Scale(qDot(q, w), dt)))
	}
}

// qDot returns the quaternion derivative ½ q⊗(0,w).
func qDot(q Quaternion, w [3]float64) Quaternion {
	return Scale(Prod(q, Quaternion{X: w[0], Y: w[1], Z: w[2]}), 0.5)
}
