package ahrs

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows(n int, v [3]float64) [][]float64 {
	r := make([][]float64, n)
	for i := range r {
		r[i] = []float64{v[0], v[1], v[2]}
	}
	return r
}

// staticInput is n noiseless samples of a body held still at attitude q.
func staticInput(n int, q Quaternion, dt float64) Input {
	ref := DefaultReference()
	return Input{
		Gyr: rows(n, [3]float64{}),
		Acc: rows(n, ref.PredictGravity(q)),
		Mag: rows(n, ref.PredictMagnetic(q)),
		Dt:  dt,
	}
}

var allKinds = []ObserverKind{KindEKF, KindMadgwick, KindMahony}

func TestEstimateIdentity(t *testing.T) {
	in := staticInput(3, Identity, 0.01)
	for _, kind := range allKinds {
		tr, err := Estimate(DefaultConfig(kind), in)
		require.NoError(t, err, kind)
		require.Len(t, tr.Q, 3)
		require.Len(t, tr.Faults, 3)
		assert.NotEqual(t, uuid.Nil, tr.ID)
		assert.Equal(t, kind, tr.Observer)
		assert.Zero(t, tr.FaultCount())
		for i, q := range tr.Q {
			assert.InDelta(t, 0, AngleBetween(q, Identity), 1e-6, "%s sample %d", kind, i)
		}
	}

	for _, kind := range allKinds {
		kind := kind
		t.Run("q0_"+string(kind), func(t *testing.T) {
			cfg := DefaultConfig(kind)
			cfg.Q0 = []float64{1, 0, 0, 0}
			tr, err := Estimate(cfg, in)
			require.NoError(t, err)
			assert.Equal(t, Identity, tr.Q[0])
			assert.Zero(t, tr.FaultCount())
			for i, q := range tr.Q {
				assert.InDelta(t, 0, AngleBetween(q, Identity), 1e-6, "sample %d", i)
			}
		})
	}
}

// referenceInput is n noiseless samples of a body held still at attitude q
// under ref.
func referenceInput(n int, q Quaternion, ref *Reference, dt float64) Input {
	return Input{
		Gyr: rows(n, [3]float64{}),
		Acc: rows(n, ref.PredictGravity(q)),
		Mag: rows(n, ref.PredictMagnetic(q)),
		Dt:  dt,
	}
}

func TestEstimateWithReference(t *testing.T) {
	ref := downReference(t)
	truth := ToQuaternion(25*Deg, -15*Deg, 140*Deg)
	in := referenceInput(4000, truth, ref, 0.01)
	off := Prod(truth, ToQuaternion(30*Deg, -20*Deg, 25*Deg))

	for _, kind := range allKinds {
		kind := kind
		t.Run(string(kind), func(t *testing.T) {
			cfg := DefaultConfig(kind)
			cfg.Reference = ReferenceConfig{Gravity: []float64{0, 0, -1}, Magnetic: []float64{0.5, 0, 0.866}}

			tr, err := Estimate(cfg, in)
			require.NoError(t, err)
			assert.Less(t, AngleBetween(tr.Q[0], truth), 1e-6)
			assert.Less(t, AngleBetween(tr.Q[len(tr.Q)-1], truth), 1e-3)
			assert.Zero(t, tr.FaultCount())

			// Converges to the truth from a wrong start
			cfg.Q0 = []float64{off.W, off.X, off.Y, off.Z}
			tr, err = Estimate(cfg, in)
			require.NoError(t, err)
			assert.Greater(t, AngleBetween(tr.Q[0], truth), 30*Deg)
			assert.Less(t, AngleBetween(tr.Q[len(tr.Q)-1], truth), 1*Deg)

			// Tilt only without the magnetometer
			imu := in
			imu.Mag = nil
			cfg.Q0 = nil
			tr, err = Estimate(cfg, imu)
			require.NoError(t, err)
			g := ref.PredictGravity(tr.Q[len(tr.Q)-1])
			a := ref.PredictGravity(truth)
			assert.Less(t, math.Acos(math.Min(1, Dot3(g, a))), 1e-3)
		})
	}
}

func TestEstimateInitialAttitude(t *testing.T) {
	truth := ToQuaternion(30*Deg, 10*Deg, -70*Deg)
	in := staticInput(5, truth, 0.01)

	tr, err := Estimate(DefaultConfig(KindMahony), in)
	require.NoError(t, err)
	assert.Less(t, AngleBetween(tr.Q[0], truth), 1e-9)
	assert.Less(t, AngleBetween(tr.Q[4], truth), 1e-6)

	// An explicit q0 is used as given
	cfg := DefaultConfig(KindMahony)
	cfg.Q0 = []float64{2, 0, 0, 0}
	tr, err = Estimate(cfg, in)
	require.NoError(t, err)
	assert.Equal(t, Identity, tr.Q[0])

	// Without a magnetometer only the tilt is initialized
	in.Mag = nil
	tr, err = Estimate(DefaultConfig(KindMadgwick), in)
	require.NoError(t, err)
	roll, pitch, yaw := FromQuaternion(tr.Q[0])
	assert.InDelta(t, 30*Deg, roll, 1e-9)
	assert.InDelta(t, 10*Deg, pitch, 1e-9)
	assert.InDelta(t, 0, yaw, 1e-9)
}

func TestEstimateDegenerateFirstSample(t *testing.T) {
	in := staticInput(4, Identity, 0.01)
	in.Acc[0] = []float64{0, 0, 0}
	tr, err := Estimate(DefaultConfig(KindEKF), in)
	require.NoError(t, err)
	assert.Equal(t, Identity, tr.Q[0])
	assert.NotZero(t, tr.Faults[0]&FaultDegenerateAcc)
	assert.Zero(t, tr.Faults[1])

	in = staticInput(4, Identity, 0.01)
	in.Mag[0] = []float64{0, 0, 3}
	tr, err = Estimate(DefaultConfig(KindEKF), in)
	require.NoError(t, err)
	assert.Equal(t, FaultDegenerateMag, tr.Faults[0])
}

func TestEstimateMidRunFaults(t *testing.T) {
	in := staticInput(10, Identity, 0.01)
	in.Acc[5] = []float64{0, 0, 0}
	in.Mag[7] = []float64{0, 0, 0}
	for _, kind := range allKinds {
		tr, err := Estimate(DefaultConfig(kind), in)
		require.NoError(t, err)
		assert.Equal(t, 2, tr.FaultCount(), kind)
		assert.Equal(t, FaultDegenerateAcc, tr.Faults[5])
		assert.Equal(t, FaultDegenerateMag, tr.Faults[7])
		for _, q := range tr.Q {
			assert.False(t, math.IsNaN(q.W))
		}
	}
}

func TestEstimateShapeErrors(t *testing.T) {
	cfg := DefaultConfig(KindEKF)

	in := staticInput(100, Identity, 0.01)
	in.Acc = in.Acc[:99]
	_, err := Estimate(cfg, in)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	in = staticInput(10, Identity, 0.01)
	in.Acc = nil
	_, err = Estimate(cfg, in)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	in = staticInput(10, Identity, 0.01)
	in.Gyr[3] = []float64{0, 0}
	_, err = Estimate(cfg, in)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Estimate(cfg, Input{Dt: 0.01})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	in = staticInput(10, Identity, 0.01)
	in.Dts = []float64{0.01}
	_, err = Estimate(cfg, in)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestEstimateTimeSteps(t *testing.T) {
	cfg := DefaultConfig(KindMadgwick)

	in := staticInput(10, Identity, 0)
	_, err := Estimate(cfg, in)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	in.Times = []float64{0, 1, 2, 2, 3, 4, 5, 6, 7, 8}
	_, err = Estimate(cfg, in)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	// A single sample needs no time step
	_, err = Estimate(cfg, staticInput(1, Identity, 0))
	assert.NoError(t, err)

	// Dts, Times and Dt describing the same steps agree
	w := [3]float64{0.2, 0, -0.1}
	in = Input{Gyr: rows(20, w), Dt: 0.02}
	a, err := Estimate(cfg, in)
	require.NoError(t, err)

	in.Dt = 0
	in.Times = make([]float64, 20)
	for i := range in.Times {
		in.Times[i] = 5 + 0.02*float64(i)
	}
	b, err := Estimate(cfg, in)
	require.NoError(t, err)

	in.Times = nil
	in.Dts = make([]float64, 20)
	for i := range in.Dts {
		in.Dts[i] = 0.02
	}
	c, err := Estimate(cfg, in)
	require.NoError(t, err)

	want := FromRotationVector([3]float64{w[0] * 19 * 0.02, w[1] * 19 * 0.02, w[2] * 19 * 0.02})
	for _, tr := range []*Trajectory{a, b, c} {
		assert.Less(t, AngleBetween(tr.Q[19], want), 1e-6)
	}
	assert.Equal(t, a.Q, c.Q)
}

func TestEstimateInvalidConfig(t *testing.T) {
	in := staticInput(10, Identity, 0.01)

	cfg := DefaultConfig(KindMahony)
	cfg.KP = 0
	_, err := Estimate(cfg, in)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	cfg = DefaultConfig(KindEKF)
	cfg.Kalman.AccNoise = -1
	_, err = Estimate(cfg, in)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	cfg = DefaultConfig("complementary")
	_, err = Estimate(cfg, in)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestEstimateOutputs(t *testing.T) {
	in := staticInput(50, ToQuaternion(0.1, 0.2, 0.3), 0.01)

	tr, err := Estimate(DefaultConfig(KindEKF), in)
	require.NoError(t, err)
	assert.Len(t, tr.Bias, 50)
	assert.Len(t, tr.Sigma, 50)
	assert.Greater(t, tr.Sigma[0][0], tr.Sigma[49][0])

	tr, err = Estimate(DefaultConfig(KindMahony), in)
	require.NoError(t, err)
	assert.Len(t, tr.Bias, 50)
	assert.Nil(t, tr.Sigma)

	tr, err = Estimate(DefaultConfig(KindMadgwick), in)
	require.NoError(t, err)
	assert.Nil(t, tr.Bias)
	assert.Nil(t, tr.Sigma)
}

func TestEstimateAll(t *testing.T) {
	in := staticInput(500, ToQuaternion(-0.3, 0.1, 2), 0.01)
	in.Gyr = rows(500, [3]float64{0.01, 0.02, 0.03})

	var cfgs []Config
	for _, kind := range allKinds {
		cfgs = append(cfgs, DefaultConfig(kind))
	}
	adaptive := DefaultConfig(KindMadgwick)
	adaptive.Adaptive = &AdaptiveConfig{Boost: 2, Suppress: 0.5}
	cfgs = append(cfgs, adaptive)

	all, err := EstimateAll(cfgs, in)
	require.NoError(t, err)
	require.Len(t, all, len(cfgs))
	for i, cfg := range cfgs {
		one, err := Estimate(cfg, in)
		require.NoError(t, err)
		assert.Equal(t, one.Q, all[i].Q, cfg.Observer)
		assert.Equal(t, one.Faults, all[i].Faults)
		assert.NotEqual(t, one.ID, all[i].ID)
	}

	cfgs[1].KP = -1
	cfgs[2].KP = -1
	_, err = EstimateAll(cfgs, in)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
