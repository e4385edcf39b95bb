package ahrs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
observer: mahony
integrator: rk4
ki: 0.5
q0: [1, 0, 0, 0]
adaptive:
  boost: 2
  suppress: 0.25
reference:
  dip: 60
`))
	require.NoError(t, err)
	assert.Equal(t, KindMahony, c.Observer)
	assert.Equal(t, 1.0, c.KP, "kp keeps its default")
	assert.Equal(t, 0.5, c.KI)
	m, err := c.IntegratorMethod()
	require.NoError(t, err)
	assert.Equal(t, IntegratorRK4, m)
	q, ok := c.InitialQuaternion()
	assert.True(t, ok)
	assert.Equal(t, Identity, q)

	ref, err := c.BuildReference()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ref.Magnetic[0], 1e-12)

	o, err := c.NewObserver(Identity, true)
	require.NoError(t, err)
	mh, ok := o.(*MahonyState)
	require.True(t, ok)
	assert.NotNil(t, mh.Schedule)
}

func TestParseConfigDefaults(t *testing.T) {
	c, err := ParseConfig([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, KindEKF, c.Observer)
	assert.Equal(t, DefaultKalmanParams(), c.KalmanParams())
	_, ok := c.InitialQuaternion()
	assert.False(t, ok)

	c, err = ParseConfig([]byte(`
observer: ekf
kalman:
  estimate_bias: true
  initial_covariance: [1e-2, 1e-2, 1e-2, 1e-2, 1e-5, 1e-5, 1e-5]
  mag_noise: 0.05
`))
	require.NoError(t, err)
	p := c.KalmanParams()
	assert.True(t, p.EstimateBias)
	assert.Equal(t, 0.05, p.MagNoise)
	assert.Equal(t, 1e-2, p.AccNoise)
	o, err := c.NewObserver(Identity, true)
	require.NoError(t, err)
	assert.Equal(t, 7, o.(*KalmanState).M.Rows())
}

func TestMadgwickBetaDefault(t *testing.T) {
	c := DefaultConfig(KindMadgwick)
	o, err := c.NewObserver(Identity, false)
	require.NoError(t, err)
	assert.Equal(t, MadgwickBetaIMU, o.(*MadgwickState).Beta)
	o, err = c.NewObserver(Identity, true)
	require.NoError(t, err)
	assert.Equal(t, MadgwickBetaMARG, o.(*MadgwickState).Beta)

	beta := 0.2
	c.Beta = &beta
	o, err = c.NewObserver(Identity, true)
	require.NoError(t, err)
	assert.Equal(t, 0.2, o.(*MadgwickState).Beta)
}

func TestConfigValidation(t *testing.T) {
	bad := map[string]string{
		"unknown observer":   `observer: triad`,
		"unknown integrator": `{observer: madgwick, integrator: midpoint}`,
		"zero beta":          `{observer: madgwick, beta: 0}`,
		"negative kp":        `{observer: mahony, kp: -1}`,
		"negative ki":        `{observer: mahony, ki: -0.1}`,
		"short q0":           `{observer: mahony, q0: [1, 0, 0]}`,
		"zero q0":            `{observer: mahony, q0: [0, 0, 0, 0]}`,
		"zero acc noise":     "observer: ekf\nkalman: {acc_noise: 0}",
		"negative variance":  "observer: ekf\nkalman: {process_noise: [-1]}",
		"covariance length":  "observer: ekf\nkalman: {initial_covariance: [1, 1, 1]}",
		"collinear":          "observer: ekf\nreference: {gravity: [0, 0, 1], magnetic: [0, 0, -2]}",
		"short gravity":      "observer: ekf\nreference: {gravity: [0, 1]}",
		"zero boost":         "observer: madgwick\nadaptive: {boost: 0, suppress: 1}",
		"not yaml":           `observer: [`,
	}
	for name, doc := range bad {
		_, err := ParseConfig([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidConfiguration, name)
	}

	// KI of zero disables bias estimation
	_, err := ParseConfig([]byte(`{observer: mahony, ki: 0}`))
	assert.NoError(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ahrs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observer: madgwick\nbeta: 0.1\n"), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, c.Beta)
	assert.Equal(t, 0.1, *c.Beta)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("observer: mahony\nkp: 0\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), path)
}
