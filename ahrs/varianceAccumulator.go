package ahrs

// VarianceAccumulator keeps an exponentially weighted mean and variance of a
// stream of observations, forgetting old ones with the decay constant.
type VarianceAccumulator struct {
	decay float64
	n     float64 // effective number of observations
	mean  float64
	v     float64
}

// NewVarianceAccumulator returns an accumulator seeded with the observation
// init and the decay constant decay in (0, 1).
func NewVarianceAccumulator(init, decay float64) *VarianceAccumulator {
	return &VarianceAccumulator{decay: decay, n: 1, mean: init}
}

// Add accumulates obs and returns the current estimates of the effective
// number of observations, the mean and the variance.
func (a *VarianceAccumulator) Add(obs float64) (n, mean, variance float64) {
	d := obs - a.mean
	dm := (1 - a.decay) * d

	a.n = 1 + a.decay*a.n
	a.mean += dm
	a.v = a.decay * (a.v + dm*d)
	return a.n, a.mean, a.v
}

// Stats returns the current estimates without adding an observation.
func (a *VarianceAccumulator) Stats() (n, mean, variance float64) {
	return a.n, a.mean, a.v
}
