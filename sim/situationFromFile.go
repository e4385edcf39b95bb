package sim

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/westphae/goahrs/ahrs"
	"github.com/westphae/goahrs/internal/log"
)

// Recording columns: T in seconds, gyro H1-H3 in °/s, accelerometer A1-A3,
// magnetometer M1-M3. Other columns are ignored.
var recordingColumns = []string{"T", "H1", "H2", "H3", "A1", "A2", "A3", "M1", "M2", "M3"}

// LoadRecording reads a recorded sensor log in CSV form with a header row.
// Acc and Mag are left nil when their columns are absent. Rows that cannot be
// parsed are skipped.
func LoadRecording(fn string) (ahrs.Input, error) {
	f, err := os.Open(fn)
	if err != nil {
		return ahrs.Input{}, errors.Wrap(err, "sim: opening recording")
	}
	defer f.Close()
	return ReadRecording(f)
}

// ReadRecording reads a recorded sensor log from r; see LoadRecording.
func ReadRecording(r io.Reader) (in ahrs.Input, err error) {
	cr := csv.NewReader(bufio.NewReader(r))

	// Read header line
	rec, err := cr.Read()
	if err != nil {
		return in, errors.Wrap(err, "sim: reading recording header")
	}
	fields := make(map[string]int)
	for i, k := range rec {
		fields[k] = i
	}
	for _, k := range []string{"T", "H1", "H2", "H3"} {
		if _, ok := fields[k]; !ok {
			return in, errors.Errorf("sim: recording has no %s column", k)
		}
	}
	_, hasAcc := fields["A1"]
	_, hasMag := fields["M1"]

	// Read the rest of the data
	for line := 2; ; line++ {
		rec, err = cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			log.Warn("skipping recording row", "line", line, "err", err)
			continue
		}

		var v [10]float64
		ok := true
		for j, k := range recordingColumns {
			i, present := fields[k]
			if !present {
				continue
			}
			if v[j], err = strconv.ParseFloat(rec[i], 64); err != nil {
				log.Warn("skipping recording row", "line", line, "column", k, "err", err)
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		in.Times = append(in.Times, v[0])
		in.Gyr = append(in.Gyr, []float64{v[1] * ahrs.Deg, v[2] * ahrs.Deg, v[3] * ahrs.Deg})
		if hasAcc {
			in.Acc = append(in.Acc, []float64{v[4], v[5], v[6]})
		}
		if hasMag {
			in.Mag = append(in.Mag, []float64{v[7], v[8], v[9]})
		}
	}
	if len(in.Times) == 0 {
		return in, errors.New("sim: recording has no samples")
	}
	return in, nil
}
