/*
Test out the AHRS code in ahrs/.
Define a flight path/attitude in code, and then synthesize the matching gyro,
accel and magnetometer data, adding some noise if desired.
Then see if the AHRS code can replicate the "true" attitude given the noisy and
limited input data. A recorded sensor log can be replayed instead.
*/
package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/westphae/goahrs/ahrs"
	"github.com/westphae/goahrs/ahrsweb"
	"github.com/westphae/goahrs/internal/log"
	"github.com/westphae/goahrs/sim"
)

func main() {
	opts := new(options)
	flags := pflag.NewFlagSet("ahrs_sim", pflag.ExitOnError)
	opts.bindFlags(flags)
	flags.Parse(os.Args[1:])
	log.Init(opts.logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("ahrs_sim failed", "err", err)
		os.Exit(1)
	}
}

// data is the input to the observers, with the truth when it is known.
type data struct {
	in    ahrs.Input
	times []float64
	truth []ahrs.Quaternion
	field *[3]float64
}

func load(opts *options) (*data, error) {
	sit, ok := sim.Scenarios[opts.scenario]
	if !ok {
		log.Info("loading recorded data", "file", opts.scenario)
		in, err := sim.LoadRecording(opts.scenario)
		if err != nil {
			return nil, err
		}
		return &data{in: in, times: in.Times}, nil
	}

	sen, err := opts.sensors()
	if err != nil {
		return nil, err
	}
	log.Info("simulation parameters",
		"scenario", opts.scenario, "dt", opts.dt,
		"gyro_noise", opts.gyroNoise, "gyro_bias", opts.gyroBias,
		"accel_noise", opts.accelNoise, "accel_bias", opts.accelBias, "accel_inop", opts.accelInop,
		"mag_noise", opts.magNoise, "mag_bias", opts.magBias, "mag_inop", opts.magInop)
	r, err := sim.Samples(sit, opts.dt, sen)
	if err != nil {
		return nil, err
	}
	return &data{in: r.Input, times: r.Times, truth: r.Truth, field: &r.Field}, nil
}

func run(ctx context.Context, opts *options) error {
	cfgs, err := opts.configs()
	if err != nil {
		return err
	}
	d, err := load(opts)
	if err != nil {
		return err
	}

	// The EKF needs the field direction; use the simulated one unless configured
	for i := range cfgs {
		ref := &cfgs[i].Reference
		if d.field != nil && ref.Magnetic == nil && ref.Dip == nil {
			ref.Magnetic = d.field[:]
		}
	}

	log.Info("running estimation", "observers", len(cfgs), "samples", len(d.in.Gyr))
	trs, err := ahrs.EstimateAll(cfgs, d.in)
	if err != nil {
		return err
	}

	for _, tr := range trs {
		args := []any{"run", tr.ID.String(), "observer", string(tr.Observer), "faults", tr.FaultCount()}
		if d.truth != nil {
			rms, final := attitudeErrors(tr.Q, d.truth)
			args = append(args, "rms_error_deg", rms/ahrs.Deg, "final_error_deg", final/ahrs.Deg)
		}
		log.Info("estimation finished", args...)

		if opts.csv != "" {
			fn := opts.csv
			if len(trs) > 1 {
				ext := filepath.Ext(fn)
				fn = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(fn, ext), tr.Observer, ext)
			}
			if err := writeCSV(fn, tr, d); err != nil {
				return err
			}
			log.Info("trajectory written", "file", fn)
		}
	}

	frames := ahrsweb.Frames(trs[0], d.in, d.times, d.truth)
	if opts.publish != "" {
		p, err := ahrsweb.NewPublisher(opts.publish)
		if err != nil {
			return err
		}
		err = ahrsweb.Replay(ctx, p, frames, opts.speed)
		p.Close()
		if err != nil {
			return err
		}
	}
	if opts.serve != "" {
		return serve(ctx, opts, frames)
	}
	return nil
}

// attitudeErrors returns the RMS and final angle between the estimate and the truth.
func attitudeErrors(q, truth []ahrs.Quaternion) (rms, final float64) {
	for i := range q {
		e := ahrs.AngleBetween(q[i], truth[i])
		rms += e * e
		final = e
	}
	return math.Sqrt(rms / float64(len(q))), final
}

var truthHeader = []string{"TrueRoll", "TruePitch", "TrueHeading"}

func writeCSV(fn string, tr *ahrs.Trajectory, d *data) error {
	header := ahrs.TrajectoryHeader
	if d.truth != nil {
		header = append(append([]string{}, header...), truthHeader...)
	}
	l, err := ahrs.NewAHRSLogger(fn, header)
	if err != nil {
		return err
	}
	defer l.Close()

	if d.truth == nil {
		return l.LogTrajectory(tr, d.times)
	}
	for i := range tr.Q {
		m := ahrs.TrajectoryLogMap(tr, i)
		m["T"] = d.times[i]
		roll, pitch, yaw := ahrs.FromQuaternion(d.truth[i])
		m["TrueRoll"], m["TruePitch"] = roll/ahrs.Deg, pitch/ahrs.Deg
		m["TrueHeading"] = math.Mod(360-yaw/ahrs.Deg, 360)
		if err := l.Log(m); err != nil {
			return err
		}
	}
	return nil
}

// serve runs the live view until ctx is done, replaying frames once.
func serve(ctx context.Context, opts *options, frames []*ahrsweb.AHRSData) error {
	room := ahrsweb.NewRoom()
	go room.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle(ahrsweb.Path, room)
	srv := &http.Server{Addr: opts.serve, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		log.Info("starting web server", "addr", opts.serve)
		errc <- srv.ListenAndServe()
	}()

	if err := ahrsweb.Replay(ctx, room, frames, opts.speed); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("replay stopped", "err", err)
	}

	select {
	case err := <-errc:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}
