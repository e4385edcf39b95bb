package ahrs

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ObserverKind names an observer family.
type ObserverKind string

const (
	KindEKF      ObserverKind = "ekf"
	KindMadgwick ObserverKind = "madgwick"
	KindMahony   ObserverKind = "mahony"
)

// Config selects and tunes an observer for an estimation run.
type Config struct {
	Observer   ObserverKind `yaml:"observer"`
	Integrator string       `yaml:"integrator"`
	Q0         []float64    `yaml:"q0,omitempty"` // W, X, Y, Z; estimated from the first sample if empty

	Beta     *float64        `yaml:"beta,omitempty"` // Madgwick; IMU or MARG default if unset
	KP       float64         `yaml:"kp"`             // Mahony
	KI       float64         `yaml:"ki"`             // Mahony, zero disables bias estimation
	Adaptive *AdaptiveConfig `yaml:"adaptive,omitempty"`

	Kalman    KalmanConfig    `yaml:"kalman"`
	Reference ReferenceConfig `yaml:"reference"`
}

// AdaptiveConfig enables a LowDynamicsSchedule on the explicit observers.
type AdaptiveConfig struct {
	Boost    float64 `yaml:"boost"`
	Suppress float64 `yaml:"suppress"`
}

// KalmanConfig is the YAML form of KalmanParams.
type KalmanConfig struct {
	EstimateBias      bool      `yaml:"estimate_bias"`
	InitialCovariance []float64 `yaml:"initial_covariance"`
	ProcessNoise      []float64 `yaml:"process_noise"`
	AccNoise          float64   `yaml:"acc_noise"`
	MagNoise          float64   `yaml:"mag_noise"`
	CheckCovariance   bool      `yaml:"check_covariance"`
}

// ReferenceConfig gives the earth frame reference directions.
// Dip, in degrees, overrides Magnetic when set.
type ReferenceConfig struct {
	Gravity  []float64 `yaml:"gravity,omitempty"`
	Magnetic []float64 `yaml:"magnetic,omitempty"`
	Dip      *float64  `yaml:"dip,omitempty"`
}

// DefaultConfig returns the default tuning for the observer kind.
func DefaultConfig(kind ObserverKind) Config {
	kp := DefaultKalmanParams()
	c := Config{
		Observer:   kind,
		Integrator: IntegratorEuler.String(),
		Kalman: KalmanConfig{
			InitialCovariance: kp.InitialCovariance,
			ProcessNoise:      kp.ProcessNoise,
			AccNoise:          kp.AccNoise,
			MagNoise:          kp.MagNoise,
		},
	}
	if kind == KindMahony {
		c.KP = 1
		c.KI = 0.1
	}
	return c
}

// ParseConfig decodes a YAML config over the defaults for its observer kind.
func ParseConfig(b []byte) (c Config, err error) {
	var head struct {
		Observer ObserverKind `yaml:"observer"`
	}
	if err = yaml.Unmarshal(b, &head); err != nil {
		return c, errors.Wrap(ErrInvalidConfiguration, err.Error())
	}
	if head.Observer == "" {
		head.Observer = KindEKF
	}
	c = DefaultConfig(head.Observer)
	if err = yaml.Unmarshal(b, &c); err != nil {
		return c, errors.Wrap(ErrInvalidConfiguration, err.Error())
	}
	return c, c.Validate()
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	c, err := ParseConfig(b)
	return c, errors.WithMessagef(err, "config %s", path)
}

// IntegratorMethod returns the Integrator named by the config.
func (c Config) IntegratorMethod() (Integrator, error) {
	if c.Integrator == "" {
		return IntegratorEuler, nil
	}
	for k, v := range integratorNames {
		if v == c.Integrator {
			return k, nil
		}
	}
	return 0, invalidf("unknown integrator %q", c.Integrator)
}

// InitialQuaternion returns the configured initial attitude, if any.
func (c Config) InitialQuaternion() (q Quaternion, ok bool) {
	if len(c.Q0) != 4 {
		return Identity, false
	}
	return Unit(Quaternion{c.Q0[0], c.Q0[1], c.Q0[2], c.Q0[3]}), true
}

// KalmanParams returns the EKF tuning of the config.
func (c Config) KalmanParams() KalmanParams {
	return KalmanParams{
		EstimateBias:      c.Kalman.EstimateBias,
		InitialCovariance: c.Kalman.InitialCovariance,
		ProcessNoise:      c.Kalman.ProcessNoise,
		AccNoise:          c.Kalman.AccNoise,
		MagNoise:          c.Kalman.MagNoise,
		CheckCovariance:   c.Kalman.CheckCovariance,
	}
}

// BuildReference returns the reference directions of the config.
func (c Config) BuildReference() (*Reference, error) {
	r := DefaultReference()
	if c.Reference.Dip != nil {
		r = ReferenceFromDip(*c.Reference.Dip * Deg)
	}
	g, m := r.Gravity, r.Magnetic
	if c.Reference.Gravity != nil {
		if len(c.Reference.Gravity) != 3 {
			return nil, invalidf("reference gravity needs 3 values, got %d", len(c.Reference.Gravity))
		}
		copy(g[:], c.Reference.Gravity)
	}
	if c.Reference.Magnetic != nil && c.Reference.Dip == nil {
		if len(c.Reference.Magnetic) != 3 {
			return nil, invalidf("reference magnetic needs 3 values, got %d", len(c.Reference.Magnetic))
		}
		copy(m[:], c.Reference.Magnetic)
	}
	return NewReference(g, m)
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return invalidf("%s must be positive, got %g", name, v)
	}
	return nil
}

// Validate checks the config for the selected observer.
func (c Config) Validate() error {
	if _, err := c.IntegratorMethod(); err != nil {
		return err
	}
	if c.Q0 != nil {
		if len(c.Q0) != 4 {
			return invalidf("q0 needs 4 values, got %d", len(c.Q0))
		}
		if Norm(Quaternion{c.Q0[0], c.Q0[1], c.Q0[2], c.Q0[3]}) < QuatEpsilon {
			return invalidf("q0 %v has near-zero norm", c.Q0)
		}
	}
	if _, err := c.BuildReference(); err != nil {
		return err
	}
	if c.Adaptive != nil {
		if err := positive("adaptive boost", c.Adaptive.Boost); err != nil {
			return err
		}
		if c.Adaptive.Suppress < 0 {
			return invalidf("adaptive suppress must not be negative, got %g", c.Adaptive.Suppress)
		}
	}

	switch c.Observer {
	case KindMadgwick:
		if c.Beta != nil {
			return positive("beta", *c.Beta)
		}
	case KindMahony:
		if err := positive("kp", c.KP); err != nil {
			return err
		}
		if c.KI < 0 || math.IsNaN(c.KI) {
			return invalidf("ki must not be negative, got %g", c.KI)
		}
	case KindEKF:
		n := 4
		if c.Kalman.EstimateBias {
			n = 7
		}
		if _, err := expandDiagonal("initial covariance", c.Kalman.InitialCovariance, n); err != nil {
			return err
		}
		if _, err := expandDiagonal("process noise", c.Kalman.ProcessNoise, n); err != nil {
			return err
		}
		if err := positive("acc noise", c.Kalman.AccNoise); err != nil {
			return err
		}
		return positive("mag noise", c.Kalman.MagNoise)
	default:
		return invalidf("unknown observer %q", c.Observer)
	}
	return nil
}

// NewObserver builds the configured observer starting at q0.
// withMag selects the MARG default gain for Madgwick.
func (c Config) NewObserver(q0 Quaternion, withMag bool) (Observer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	method, _ := c.IntegratorMethod()
	ref, _ := c.BuildReference()

	var schedule GainSchedule
	if c.Adaptive != nil {
		schedule = NewLowDynamicsSchedule(c.Adaptive.Boost, c.Adaptive.Suppress)
	}

	switch c.Observer {
	case KindMadgwick:
		beta := MadgwickBetaIMU
		if withMag {
			beta = MadgwickBetaMARG
		}
		if c.Beta != nil {
			beta = *c.Beta
		}
		o := NewMadgwick(q0, beta, method, ref)
		o.Schedule = schedule
		return o, nil
	case KindMahony:
		o := NewMahony(q0, c.KP, c.KI, method, ref)
		o.Schedule = schedule
		return o, nil
	default:
		o, err := NewKalman(q0, c.KalmanParams(), method, ref)
		if err != nil {
			return nil, err
		}
		return o, nil
	}
}
