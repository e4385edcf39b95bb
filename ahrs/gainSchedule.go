package ahrs

import "math"

// GainSchedule scales an observer's correction gain from the measured motion.
// A schedule keeps state across steps, so each observer needs its own.
type GainSchedule interface {
	Factor(gyr [3]float64, acc [3]float64) float64
}

// LowDynamicsSchedule trusts the reference measurements more while the body is
// quasi-static and less while it manoeuvres.
// Motion is measured as the relative spread of the accelerometer norm plus the
// smoothed gyro rate over GyrScale.
type LowDynamicsSchedule struct {
	Low, High     float64 // motion thresholds
	Boost         float64 // factor applied below Low
	Suppress      float64 // factor applied above High
	GyrScale      float64 // rad/s
	accNorm, rate *VarianceAccumulator
}

// NewLowDynamicsSchedule returns a schedule with the usual thresholds.
func NewLowDynamicsSchedule(boost, suppress float64) *LowDynamicsSchedule {
	return &LowDynamicsSchedule{
		Low:      0.02,
		High:     0.2,
		Boost:    boost,
		Suppress: suppress,
		GyrScale: 1,
	}
}

// Factor implements GainSchedule.
func (l *LowDynamicsSchedule) Factor(gyr [3]float64, acc [3]float64) float64 {
	a, w := Norm3(acc), Norm3(gyr)
	if l.accNorm == nil {
		l.accNorm = NewVarianceAccumulator(a, MMDecay)
		l.rate = NewVarianceAccumulator(w, MMDecay)
	}
	_, ma, va := l.accNorm.Add(a)
	_, mw, _ := l.rate.Add(w)
	if ma < Small {
		return l.Suppress
	}

	motion := math.Sqrt(va)/ma + mw/l.GyrScale
	switch {
	case motion < l.Low:
		return l.Boost
	case motion > l.High:
		return l.Suppress
	}
	// Linear between the thresholds
	k := (motion - l.Low) / (l.High - l.Low)
	return l.Boost + k*(l.Suppress-l.Boost)
}
