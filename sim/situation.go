// Package sim synthesizes sensor data for attitude estimation runs, either
// from a scripted scenario with known truth or from a recorded sensor log.
package sim

import (
	"github.com/pkg/errors"

	"github.com/westphae/goahrs/ahrs"
)

const (
	G  = 9.80665       // Standard gravity, m/s²
	Kt = 1852.0 / 3600 // One knot, m/s
)

// ErrOutOfRange is returned when a time outside the scenario is requested.
var ErrOutOfRange = errors.New("sim: requested time is outside of scenario")

// Situation is a scripted motion whose true state is known at any time.
type Situation interface {
	BeginTime() float64
	EndTime() float64
	Interpolate(t float64) (Truth, error)
}

// Truth is the actual state of the vehicle and sensor at one instant.
type Truth struct {
	T        float64
	Q        ahrs.Quaternion // sensor frame to earth frame
	Vehicle  ahrs.Quaternion // vehicle frame to earth frame
	Velocity [3]float64      // earth frame, m/s
	Field    [3]float64      // earth frame magnetic field
}
