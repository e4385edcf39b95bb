package sim

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/westphae/goahrs/ahrs"
)

// Sensors describes the imperfections of the simulated IMU.
// Noise values are Gaussian standard deviations added to every component.
type Sensors struct {
	GyroNoise float64    // rad/s
	GyroBias  [3]float64 // rad/s
	AccNoise  float64    // G
	AccBias   [3]float64 // G
	MagNoise  float64    // field units
	MagBias   [3]float64 // field units
	AccInop   bool       // No accelerometer (and so no magnetometer) samples
	MagInop   bool       // No magnetometer samples
	Seed      int64
}

// Run is a synthesized data set along with the truth it was generated from.
type Run struct {
	Input ahrs.Input
	Times []float64
	Truth []ahrs.Quaternion
	Field [3]float64 // earth frame magnetic field at the start
}

// derivativeStep is the half-width of the central differences used for rates.
const derivativeStep = 1e-4

// Samples the situation every dt seconds from its beginning to its end.
func Samples(sit Situation, dt float64, sen Sensors) (*Run, error) {
	if !(dt > 0) {
		return nil, errors.Errorf("sim: time step must be positive, got %g", dt)
	}
	t0, t1 := sit.BeginTime(), sit.EndTime()
	n := int(math.Floor((t1-t0)/dt+1e-9)) + 1

	r := &Run{
		Times: make([]float64, n),
		Truth: make([]ahrs.Quaternion, n),
	}
	r.Input.Gyr = make([][]float64, n)
	if !sen.AccInop {
		r.Input.Acc = make([][]float64, n)
		if !sen.MagInop {
			r.Input.Mag = make([][]float64, n)
		}
	}

	rnd := rand.New(rand.NewSource(sen.Seed))
	noisy := func(v [3]float64, bias [3]float64, noise float64) []float64 {
		out := make([]float64, 3)
		for i := range out {
			out[i] = v[i] + bias[i] + noise*rnd.NormFloat64()
		}
		return out
	}

	for i := 0; i < n; i++ {
		t := math.Min(t0+float64(i)*dt, t1)
		x, gyr, acc, err := sense(sit, t)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			r.Field = x.Field
		}
		r.Times[i] = t
		r.Truth[i] = x.Q
		r.Input.Gyr[i] = noisy(gyr, sen.GyroBias, sen.GyroNoise)
		if r.Input.Acc != nil {
			r.Input.Acc[i] = noisy(acc, sen.AccBias, sen.AccNoise)
		}
		if r.Input.Mag != nil {
			r.Input.Mag[i] = noisy(ahrs.RotateInverse(x.Q, x.Field), sen.MagBias, sen.MagNoise)
		}
	}
	r.Input.Times = r.Times
	return r, nil
}

// sense returns the truth at t with the ideal gyro and accelerometer readings:
// the body rate of the sensor frame and the specific force in G, both in the
// sensor frame.
func sense(sit Situation, t float64) (x Truth, gyr, acc [3]float64, err error) {
	if x, err = sit.Interpolate(t); err != nil {
		return
	}
	ta := math.Max(t-derivativeStep, sit.BeginTime())
	tb := math.Min(t+derivativeStep, sit.EndTime())
	xa, err := sit.Interpolate(ta)
	if err != nil {
		return
	}
	xb, err := sit.Interpolate(tb)
	if err != nil {
		return
	}
	ddt := tb - ta

	w := ahrs.RotationVector(ahrs.Prod(ahrs.Conj(xa.Q), xb.Q))
	f := [3]float64{0, 0, 1}
	for i := range gyr {
		gyr[i] = w[i] / ddt
		f[i] += (xb.Velocity[i] - xa.Velocity[i]) / ddt / G
	}
	acc = ahrs.RotateInverse(x.Q, f)
	return
}
