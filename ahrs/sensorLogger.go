package ahrs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// TrajectoryHeader lists the columns written by LogTrajectory.
var TrajectoryHeader = []string{
	"T", "W", "X", "Y", "Z", "Roll", "Pitch", "Heading", "Fault",
	"B1", "B2", "B3", "DRoll", "DPitch", "DHeading",
}

// AHRSLogger writes one CSV row per call to Log, with columns in Header order.
type AHRSLogger struct {
	w      io.Writer
	c      io.Closer
	Header []string
	fmt    string
	vals   []interface{}
}

// NewAHRSLogger creates filename and writes the header row.
func NewAHRSLogger(filename string, header []string) (*AHRSLogger, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrap(err, "creating log")
	}
	l, err := NewAHRSWriter(f, header)
	if err != nil {
		f.Close()
		return nil, err
	}
	l.c = f
	return l, nil
}

// NewAHRSWriter writes the header row to w.
func NewAHRSWriter(w io.Writer, header []string) (*AHRSLogger, error) {
	l := &AHRSLogger{w: w, Header: header}
	if _, err := fmt.Fprint(l.w, strings.Join(l.Header, ","), "\n"); err != nil {
		return nil, errors.Wrap(err, "writing log header")
	}
	s := strings.Repeat("%f,", len(l.Header))
	l.fmt = strings.Join([]string{s[:len(s)-1], "\n"}, "")
	l.vals = make([]interface{}, len(l.Header))
	return l, nil
}

// Log writes the values of logMap named by the header; missing ones are zero.
func (l *AHRSLogger) Log(logMap map[string]float64) error {
	for i, k := range l.Header {
		l.vals[i] = logMap[k]
	}
	_, err := fmt.Fprintf(l.w, l.fmt, l.vals...)
	return errors.Wrap(err, "writing log row")
}

// LogTrajectory writes one row per sample of t. times may be nil, in which
// case the sample index is logged as T.
func (l *AHRSLogger) LogTrajectory(t *Trajectory, times []float64) error {
	for i := range t.Q {
		m := TrajectoryLogMap(t, i)
		if times != nil {
			m["T"] = times[i]
		}
		if err := l.Log(m); err != nil {
			return err
		}
	}
	return nil
}

// TrajectoryLogMap returns the logged values of sample i of t, angles in degrees.
func TrajectoryLogMap(t *Trajectory, i int) map[string]float64 {
	q := t.Q[i]
	roll, pitch, yaw := FromQuaternion(q)
	m := map[string]float64{
		"T":       float64(i),
		"W":       q.W,
		"X":       q.X,
		"Y":       q.Y,
		"Z":       q.Z,
		"Roll":    roll / Deg,
		"Pitch":   pitch / Deg,
		"Heading": headingDeg(yaw),
		"Fault":   float64(t.Faults[i]),
	}
	if t.Bias != nil {
		m["B1"], m["B2"], m["B3"] = t.Bias[i][0], t.Bias[i][1], t.Bias[i][2]
	}
	if t.Sigma != nil {
		m["DRoll"], m["DPitch"], m["DHeading"] = t.Sigma[i][0]/Deg, t.Sigma[i][1]/Deg, t.Sigma[i][2]/Deg
	}
	return m
}

// headingDeg converts a yaw angle into a compass heading in [0, 360).
func headingDeg(yaw float64) float64 {
	h := -yaw / Deg
	for h < 0 {
		h += 360
	}
	for h >= 360 {
		h -= 360
	}
	return h
}

// Close closes the underlying file, if the logger owns one.
func (l *AHRSLogger) Close() error {
	if l.c == nil {
		return nil
	}
	return l.c.Close()
}
