package ahrs

import (
	"math"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/westphae/goahrs/internal/log"
)

// Input holds a batch of uniformly indexed sensor samples.
// Gyr is required. Acc and Mag are optional but must match Gyr in length,
// and Mag needs Acc. The step before sample i is Dts[i] if given, else
// Times[i]-Times[i-1] if given, else Dt.
type Input struct {
	Gyr   [][]float64 // rad/s
	Acc   [][]float64
	Mag   [][]float64
	Dt    float64
	Dts   []float64
	Times []float64
}

// Trajectory is the output of an estimation run, one entry per input sample.
type Trajectory struct {
	ID       uuid.UUID
	Observer ObserverKind
	Q        []Quaternion
	Faults   []Fault
	Bias     [][3]float64 // gyro bias estimates, nil if the observer has none
	Sigma    [][3]float64 // roll, pitch, heading std devs, nil if the observer has no covariance
}

// FaultCount returns the number of samples with any fault recorded.
func (t *Trajectory) FaultCount() (n int) {
	for _, f := range t.Faults {
		if f != 0 {
			n++
		}
	}
	return
}

type sample struct {
	n        int
	gyr      [][3]float64
	acc, mag [][3]float64
	dt       []float64 // dt[i] is the step ending at sample i; dt[0] is unused
}

func rows3(name string, v [][]float64, n int) ([][3]float64, error) {
	if v == nil {
		return nil, nil
	}
	if len(v) != n {
		return nil, shapef("%s has %d samples, gyro has %d", name, len(v), n)
	}
	r := make([][3]float64, n)
	for i, row := range v {
		if len(row) != 3 {
			return nil, shapef("%s sample %d has %d components", name, i, len(row))
		}
		copy(r[i][:], row)
	}
	return r, nil
}

// validate checks shapes and time steps before any observer is built.
func (in Input) validate() (s *sample, err error) {
	n := len(in.Gyr)
	if n == 0 {
		return nil, shapef("no gyro samples")
	}
	s = &sample{n: n}
	if s.gyr, err = rows3("gyro", in.Gyr, n); err != nil {
		return nil, err
	}
	if s.acc, err = rows3("accelerometer", in.Acc, n); err != nil {
		return nil, err
	}
	if s.mag, err = rows3("magnetometer", in.Mag, n); err != nil {
		return nil, err
	}
	if s.mag != nil && s.acc == nil {
		return nil, shapef("magnetometer samples need accelerometer samples")
	}

	s.dt = make([]float64, n)
	switch {
	case in.Dts != nil:
		if len(in.Dts) != n {
			return nil, shapef("dts has %d samples, gyro has %d", len(in.Dts), n)
		}
		copy(s.dt, in.Dts)
	case in.Times != nil:
		if len(in.Times) != n {
			return nil, shapef("times has %d samples, gyro has %d", len(in.Times), n)
		}
		for i := 1; i < n; i++ {
			s.dt[i] = in.Times[i] - in.Times[i-1]
		}
	default:
		for i := range s.dt {
			s.dt[i] = in.Dt
		}
	}
	for i := 1; i < n; i++ {
		if !(s.dt[i] > 0) || math.IsInf(s.dt[i], 0) {
			return nil, invalidf("time step %d is %g, must be positive", i, s.dt[i])
		}
	}
	return s, nil
}

func (s *sample) measurement(i int) *Measurement {
	m := &Measurement{Gyr: s.gyr[i]}
	if s.acc != nil {
		m.Acc = &s.acc[i]
	}
	if s.mag != nil {
		m.Mag = &s.mag[i]
	}
	return m
}

// initialAttitude returns the configured attitude, or one estimated from the
// first sample. A degenerate first sample falls back to tilt only, then to Identity.
// Both estimates are made against the reference directions of the run.
func initialAttitude(cfg Config, ref *Reference, s *sample) (q Quaternion, f Fault) {
	if q, ok := cfg.InitialQuaternion(); ok {
		return q, 0
	}
	if s.acc == nil {
		return Identity, 0
	}
	if s.mag != nil {
		var err error
		if q, err = ref.AccelMagToQuaternion(s.acc[0], s.mag[0]); err == nil {
			return q, 0
		}
		f |= FaultDegenerateMag
	}
	q, err := ref.AccelToQuaternion(s.acc[0])
	if err != nil {
		return Identity, f | FaultDegenerateAcc
	}
	return q, f
}

// Estimate runs the configured observer over the input and returns the
// attitude at every sample. Q[0] is the initial attitude; each later sample
// is one predict/correct step. Shape and configuration errors abort before any
// sample is processed; numerical faults are recorded per sample in Faults.
func Estimate(cfg Config, in Input) (*Trajectory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := in.validate()
	if err != nil {
		return nil, err
	}

	ref, err := cfg.BuildReference()
	if err != nil {
		return nil, err
	}
	q0, f0 := initialAttitude(cfg, ref, s)
	o, err := cfg.NewObserver(q0, s.mag != nil)
	if err != nil {
		return nil, err
	}

	t := &Trajectory{
		ID:       uuid.New(),
		Observer: cfg.Observer,
		Q:        make([]Quaternion, s.n),
		Faults:   make([]Fault, s.n),
	}
	logger := log.With("run", t.ID.String(), "observer", string(cfg.Observer))
	logger.Debug("estimation started", "samples", s.n, "mag", s.mag != nil, "acc", s.acc != nil)

	be, hasBias := o.(interface{ Bias() [3]float64 })
	ue, hasSigma := o.(interface {
		RollPitchHeadingUncertainty() (float64, float64, float64)
	})
	if hasBias {
		t.Bias = make([][3]float64, s.n)
	}
	if hasSigma {
		t.Sigma = make([][3]float64, s.n)
	}

	for i := 0; i < s.n; i++ {
		f := f0
		if i > 0 {
			f = Step(o, s.measurement(i), s.dt[i])
		}
		t.Q[i] = o.Quaternion()
		t.Faults[i] = f
		if hasBias {
			t.Bias[i] = be.Bias()
		}
		if hasSigma {
			t.Sigma[i][0], t.Sigma[i][1], t.Sigma[i][2] = ue.RollPitchHeadingUncertainty()
		}
		if f != 0 {
			logger.Debug("fault recovered", "index", i, "fault", f.String())
		}
	}

	logger.Debug("estimation finished", "faults", t.FaultCount())
	return t, nil
}

// EstimateAll runs each config over the same input concurrently.
// Every run owns its observer; the input is only read.
func EstimateAll(cfgs []Config, in Input) ([]*Trajectory, error) {
	ts := make([]*Trajectory, len(cfgs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range cfgs {
		i := i
		g.Go(func() (err error) {
			ts[i], err = Estimate(cfgs[i], in)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ts, nil
}
