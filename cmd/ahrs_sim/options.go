package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/westphae/goahrs/ahrs"
	"github.com/westphae/goahrs/sim"
)

type options struct {
	dt         float64
	gyroNoise  float64
	gyroBias   []float64
	accelNoise float64
	accelBias  []float64
	magNoise   float64
	magBias    []float64
	accelInop  bool
	magInop    bool
	seed       int64
	scenario   string
	algo       string
	config     string
	csv        string
	serve      string
	publish    string
	speed      float64
	logLevel   string
}

func (o *options) bindFlags(flags *pflag.FlagSet) {
	flags.Float64Var(&o.dt, "dt", 0.01, "Sample period, seconds")
	flags.Float64VarP(&o.gyroNoise, "gyro-noise", "g", 0, "Amount of noise to add to gyro measurements, °/s")
	flags.Float64SliceVarP(&o.gyroBias, "gyro-bias", "h", []float64{0, 0, 0}, "Amount of bias to add to gyro measurements, \"x,y,z\" °/s")
	flags.Float64VarP(&o.accelNoise, "accel-noise", "a", 0, "Amount of noise to add to accel measurements, G")
	flags.Float64SliceVarP(&o.accelBias, "accel-bias", "i", []float64{0, 0, 0}, "Amount of bias to add to accel measurements, \"x,y,z\" G")
	flags.Float64VarP(&o.magNoise, "mag-noise", "b", 0, "Amount of noise to add to magnetometer measurements")
	flags.Float64SliceVarP(&o.magBias, "mag-bias", "k", []float64{0, 0, 0}, "Amount of bias to add to magnetometer measurements, \"x,y,z\"")
	flags.BoolVar(&o.accelInop, "accel-inop", false, "Make the accelerometer (and magnetometer) inoperative")
	flags.BoolVarP(&o.magInop, "mag-inop", "m", false, "Make the magnetometer inoperative")
	flags.Int64Var(&o.seed, "seed", 1, "Seed for the sensor noise")
	flags.StringVarP(&o.scenario, "scenario", "s", "takeoff", "Scenario to use: \"static\", \"turn\", \"takeoff\" or a recorded CSV file")
	flags.StringVar(&o.algo, "algo", "ekf", "Algo to use for AHRS: ekf, madgwick, mahony or all")
	flags.StringVarP(&o.config, "config", "c", "", "YAML observer config, overrides --algo")
	flags.StringVar(&o.csv, "csv", "ahrs.csv", "Trajectory output file; the observer name is added when running several")
	flags.StringVar(&o.serve, "serve", "", "Address to serve the live view on, e.g. :8000")
	flags.StringVar(&o.publish, "publish", "", "Websocket URL of a running ahrsweb room to publish to")
	flags.Float64Var(&o.speed, "speed", 1, "Replay speed for --serve and --publish, 0 for as fast as possible")
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
}

func vec3(name string, v []float64) (r [3]float64, err error) {
	if len(v) != 3 {
		return r, errors.Errorf("%s needs 3 values, got %d", name, len(v))
	}
	copy(r[:], v)
	return r, nil
}

// sensors converts the noise and bias flags to SI units.
func (o *options) sensors() (s sim.Sensors, err error) {
	if s.GyroBias, err = vec3("gyro-bias", o.gyroBias); err != nil {
		return
	}
	if s.AccBias, err = vec3("accel-bias", o.accelBias); err != nil {
		return
	}
	if s.MagBias, err = vec3("mag-bias", o.magBias); err != nil {
		return
	}
	for i := range s.GyroBias {
		s.GyroBias[i] *= ahrs.Deg
	}
	s.GyroNoise = o.gyroNoise * ahrs.Deg
	s.AccNoise = o.accelNoise
	s.MagNoise = o.magNoise
	s.AccInop = o.accelInop
	s.MagInop = o.magInop
	s.Seed = o.seed
	return
}

// configs returns the observer configs to run.
func (o *options) configs() ([]ahrs.Config, error) {
	if o.config != "" {
		c, err := ahrs.LoadConfig(o.config)
		if err != nil {
			return nil, err
		}
		return []ahrs.Config{c}, nil
	}
	if o.algo == "all" {
		return []ahrs.Config{
			ahrs.DefaultConfig(ahrs.KindEKF),
			ahrs.DefaultConfig(ahrs.KindMadgwick),
			ahrs.DefaultConfig(ahrs.KindMahony),
		}, nil
	}
	c := ahrs.DefaultConfig(ahrs.ObserverKind(o.algo))
	if err := c.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "no such AHRS implementation %q", o.algo)
	}
	return []ahrs.Config{c}, nil
}
