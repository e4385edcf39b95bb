package sim

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/westphae/goahrs/ahrs"
)

const pi = math.Pi

// SituationSim defines a scenario by piecewise-linear interpolation
type SituationSim struct {
	t                  []float64 // times for situation, s
	u1, u2, u3         []float64 // velocity, m/s, vehicle frame [forward, left, up]
	phi, theta, psi    []float64 // attitude, rad [roll, pitch, yaw]
	phi0, theta0, psi0 []float64 // sensor mounting, rad [adjust for position of sensor in the vehicle]
	m1, m2, m3         []float64 // earth magnetic field [N, W, U]
}

// BeginTime returns the time stamp when the simulation begins
func (s *SituationSim) BeginTime() float64 {
	return s.t[0]
}

// EndTime returns the time stamp when the simulation ends
func (s *SituationSim) EndTime() float64 {
	return s.t[len(s.t)-1]
}

// Validate checks that every column has one value per time and that time increases.
func (s *SituationSim) Validate() error {
	n := len(s.t)
	if n < 2 {
		return errors.New("sim: scenario needs at least two times")
	}
	for _, c := range [][]float64{s.u1, s.u2, s.u3, s.phi, s.theta, s.psi,
		s.phi0, s.theta0, s.psi0, s.m1, s.m2, s.m3} {
		if len(c) != n {
			return errors.Errorf("sim: scenario column has %d values, want %d", len(c), n)
		}
	}
	for i := 1; i < n; i++ {
		if !(s.t[i] > s.t[i-1]) {
			return errors.Errorf("sim: scenario time %d does not increase", i)
		}
	}
	return nil
}

// Interpolate the actual state from a Situation definition at a given time
func (s *SituationSim) Interpolate(t float64) (x Truth, err error) {
	if t < s.t[0] || t > s.t[len(s.t)-1] {
		return x, errors.Wrapf(ErrOutOfRange, "t=%f", t)
	}
	ix := 0
	if t > s.t[0] {
		ix = sort.SearchFloat64s(s.t, t) - 1
	}

	f := (s.t[ix+1] - t) / (s.t[ix+1] - s.t[ix])
	lerp := func(v []float64) float64 {
		return f*v[ix] + (1-f)*v[ix+1]
	}

	x.T = t
	x.Vehicle = ahrs.ToQuaternion(lerp(s.phi), lerp(s.theta), lerp(s.psi))
	mount := ahrs.ToQuaternion(lerp(s.phi0), lerp(s.theta0), lerp(s.psi0))
	x.Q = ahrs.Unit(ahrs.Prod(x.Vehicle, mount))
	x.Velocity = ahrs.Rotate(x.Vehicle, [3]float64{lerp(s.u1), lerp(s.u2), lerp(s.u3)})
	x.Field = [3]float64{lerp(s.m1), lerp(s.m2), lerp(s.m3)}
	return x, nil
}

// Data to define a motionless sensor, slightly tilted
var sitStaticDef = &SituationSim{
	t:      []float64{0, 60},
	u1:     []float64{0, 0},
	u2:     []float64{0, 0},
	u3:     []float64{0, 0},
	phi:    []float64{5 * pi / 180, 5 * pi / 180},
	theta:  []float64{-3 * pi / 180, -3 * pi / 180},
	psi:    []float64{40 * pi / 180, 40 * pi / 180},
	phi0:   []float64{0, 0},
	theta0: []float64{0, 0},
	psi0:   []float64{0, 0},
	m1:     []float64{0.5, 0.5},
	m2:     []float64{0, 0},
	m3:     []float64{-0.866, -0.866},
}

// Data to define a piecewise-linear turn, with entry and exit
var airspeed = 120 * Kt // Nice airspeed for maneuvers, m/s

// Bank angle for std rate turn at given airspeed
var bank = math.Atan((2 * pi * airspeed) / (G * 120))

// Mush in a turn to maintain altitude
var mush = -airspeed * math.Sin(pi/90) / math.Cos(bank)

// start, initiate roll-in, end roll-in, initiate roll-out, end roll-out, end
var sitTurnDef = &SituationSim{
	t:      []float64{0, 10, 15, 255, 260, 270},
	u1:     []float64{airspeed, airspeed, airspeed, airspeed, airspeed, airspeed},
	u2:     []float64{0, 0, 0, 0, 0, 0},
	u3:     []float64{0, 0, mush, mush, 0, 0},
	phi:    []float64{0, 0, bank, bank, 0, 0},
	theta:  []float64{0, 0, pi / 90, pi / 90, 0, 0},
	psi:    []float64{0, 0, 0, -4 * pi, -4 * pi, -4 * pi},
	phi0:   []float64{0, 0, 0, 0, 0, 0},
	theta0: []float64{0, 0, 0, 0, 0, 0},
	psi0:   []float64{pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2},
	m1:     []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
	m2:     []float64{0, 0, 0, 0, 0, 0},
	m3:     []float64{-0.866, -0.866, -0.866, -0.866, -0.866, -0.866},
}

var bank1 = math.Atan((2 * pi * 95 * Kt) / (G * 120))
var bank2 = math.Atan((2 * pi * 120 * Kt) / (G * 120))

// Taxi, takeoff roll, climb out, then two left climbing turns
var sitTakeoffDef = &SituationSim{
	t:      []float64{0, 10, 30, 35, 55, 115, 120, 150, 155, 175, 180, 210, 215, 230},
	u1:     []float64{9 * Kt, 9 * Kt, 68 * Kt, 83 * Kt, 95 * Kt, 95 * Kt, 95 * Kt, 95 * Kt, 95 * Kt, 120 * Kt, 120 * Kt, 120 * Kt, 120 * Kt, 140 * Kt},
	u2:     []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	u3:     []float64{0, 0, 0, 3 * Kt, 3 * Kt, 3 * Kt, 2 * Kt, 2 * Kt, 2 * Kt, 0, 0, 0, 0, 0},
	phi:    []float64{0, 0, 0, 0, 0, 0, -bank1, -bank1, 0, 0, -bank2, -bank2, 0, 0},
	theta:  []float64{0, 0, 0, 0.2, 0.2, 0.2, 0.12, 0.12, 0.12, 0.03, 0.03, 0.03, 0, 0},
	psi:    []float64{0, 0, 0, 0, 0, 0, 0, pi / 2, pi / 2, pi / 2, pi / 2, pi, pi, pi},
	phi0:   []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	theta0: []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	psi0:   []float64{pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2, pi / 2},
	m1:     []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
	m2:     []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	m3:     []float64{-0.866, -0.866, -0.866, -0.866, -0.866, -0.866, -0.866, -0.866, -0.866, -0.866, -0.866, -0.866, -0.866, -0.866},
}

// Scenarios holds the built-in situations by name.
var Scenarios = map[string]*SituationSim{
	"static":  sitStaticDef,
	"turn":    sitTurnDef,
	"takeoff": sitTakeoffDef,
}
