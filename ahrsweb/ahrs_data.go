package ahrsweb

import (
	"math"

	"github.com/westphae/goahrs/ahrs"
)

// AHRSData is one streamed record of an estimation run.
type AHRSData struct {
	Run string  // ID of the estimation run
	T   float64 // Timestamp of the sample, s

	// Estimated state
	E0, E1, E2, E3 float64 // Quaternion rotating sensor frame to earth frame
	D1, D2, D3     float64 // Bias vector for gyro rates, sensor frame, °/s
	Fault          string  // Faults recovered at this sample

	// Measurement variables
	AValid, MValid bool    // Do we have accelerometer and magnetometer readings?
	A1, A2, A3     float64 // Vector holding accelerometer readings, sensor frame
	B1, B2, B3     float64 // Vector of gyro rates, °/s, sensor frame
	M1, M2, M3     float64 // Vector of magnetometer readings, sensor frame

	// Final output, °
	Pitch, Roll, Heading    float64
	DPitch, DRoll, DHeading float64 // Standard deviations, when the observer has a covariance

	// Actual attitude, when known from a simulation
	TrueValid                        bool
	TruePitch, TrueRoll, TrueHeading float64
}

// Frames builds one record per sample of t. times and truth may be nil.
func Frames(t *ahrs.Trajectory, in ahrs.Input, times []float64, truth []ahrs.Quaternion) []*AHRSData {
	frames := make([]*AHRSData, len(t.Q))
	for i, q := range t.Q {
		d := &AHRSData{
			Run:   t.ID.String(),
			T:     float64(i),
			E0:    q.W,
			E1:    q.X,
			E2:    q.Y,
			E3:    q.Z,
			Fault: t.Faults[i].String(),
		}
		if times != nil {
			d.T = times[i]
		}
		d.Roll, d.Pitch, d.Heading = rollPitchHeading(q)
		if t.Bias != nil {
			d.D1, d.D2, d.D3 = t.Bias[i][0]/ahrs.Deg, t.Bias[i][1]/ahrs.Deg, t.Bias[i][2]/ahrs.Deg
		}
		if t.Sigma != nil {
			d.DRoll, d.DPitch, d.DHeading = t.Sigma[i][0]/ahrs.Deg, t.Sigma[i][1]/ahrs.Deg, t.Sigma[i][2]/ahrs.Deg
		}
		if i < len(in.Gyr) {
			g := in.Gyr[i]
			d.B1, d.B2, d.B3 = g[0]/ahrs.Deg, g[1]/ahrs.Deg, g[2]/ahrs.Deg
		}
		if i < len(in.Acc) {
			d.AValid = true
			d.A1, d.A2, d.A3 = in.Acc[i][0], in.Acc[i][1], in.Acc[i][2]
		}
		if i < len(in.Mag) {
			d.MValid = true
			d.M1, d.M2, d.M3 = in.Mag[i][0], in.Mag[i][1], in.Mag[i][2]
		}
		if i < len(truth) {
			d.TrueValid = true
			d.TrueRoll, d.TruePitch, d.TrueHeading = rollPitchHeading(truth[i])
		}
		frames[i] = d
	}
	return frames
}

// rollPitchHeading returns the attitude in degrees, heading clockwise from north in [0, 360).
func rollPitchHeading(q ahrs.Quaternion) (roll, pitch, heading float64) {
	roll, pitch, yaw := ahrs.FromQuaternion(q)
	heading = math.Mod(360-yaw/ahrs.Deg, 360)
	return roll / ahrs.Deg, pitch / ahrs.Deg, heading
}
