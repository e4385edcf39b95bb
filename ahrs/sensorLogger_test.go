package ahrs

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAHRSLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewAHRSWriter(&buf, []string{"A", "B"})
	require.NoError(t, err)
	require.NoError(t, l.Log(map[string]float64{"A": 1.5, "C": 7}))
	require.NoError(t, l.Log(map[string]float64{"B": -2}))
	assert.NoError(t, l.Close())
	assert.Equal(t, "A,B\n1.500000,0.000000\n0.000000,-2.000000\n", buf.String())
}

func TestLogTrajectory(t *testing.T) {
	in := staticInput(20, ToQuaternion(10*Deg, -5*Deg, 45*Deg), 0.01)
	tr, err := Estimate(DefaultConfig(KindEKF), in)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.csv")
	l, err := NewAHRSLogger(path, TrajectoryHeader)
	require.NoError(t, err)
	times := make([]float64, 20)
	for i := range times {
		times[i] = 0.01 * float64(i)
	}
	require.NoError(t, l.LogTrajectory(tr, times))
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 21)
	assert.Equal(t, TrajectoryHeader, recs[0])

	col := func(row int, name string) float64 {
		for i, h := range recs[0] {
			if h == name {
				v, err := strconv.ParseFloat(recs[row][i], 64)
				require.NoError(t, err)
				return v
			}
		}
		t.Fatalf("no column %s", name)
		return 0
	}
	assert.InDelta(t, 0.19, col(20, "T"), 1e-6)
	assert.InDelta(t, 10, col(20, "Roll"), 1e-3)
	assert.InDelta(t, -5, col(20, "Pitch"), 1e-3)
	assert.InDelta(t, 315, col(20, "Heading"), 1e-3)
	assert.Greater(t, col(1, "DRoll"), 0.0)
}

func TestHeadingDeg(t *testing.T) {
	assert.Equal(t, 0.0, headingDeg(0))
	assert.InDelta(t, 270, headingDeg(90*Deg), 1e-9)
	assert.InDelta(t, 90, headingDeg(-90*Deg), 1e-9)
}
