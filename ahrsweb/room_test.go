package ahrsweb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westphae/goahrs/ahrs"
)

func startRoom(t *testing.T) (*Room, string, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRoom()
	go r.Run(ctx)
	mux := http.NewServeMux()
	mux.Handle(Path, r)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return r, "ws" + strings.TrimPrefix(srv.URL, "http") + Path, cancel
}

func readData(t *testing.T, c *websocket.Conn) *AHRSData {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := c.ReadMessage()
	require.NoError(t, err)
	d := new(AHRSData)
	require.NoError(t, json.Unmarshal(msg, d))
	return d
}

func TestPublisherToViewer(t *testing.T) {
	_, u, _ := startRoom(t)

	viewer, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer viewer.Close()

	p, err := NewPublisher(u)
	require.NoError(t, err)
	defer p.Close()

	// The viewer may join after the first records are relayed
	stop, stopped := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				p.Send(&AHRSData{Run: "r1", Roll: 12.5})
			}
		}
	}()

	d := readData(t, viewer)
	close(stop)
	<-stopped
	assert.Equal(t, "r1", d.Run)
	assert.Equal(t, 12.5, d.Roll)
}

func TestRoomSend(t *testing.T) {
	r, u, cancel := startRoom(t)

	viewer, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer viewer.Close()

	got := make(chan []byte, 1)
	go func() {
		viewer.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, _ := viewer.ReadMessage()
		got <- msg
	}()
	var msg []byte
	for msg == nil {
		require.NoError(t, r.Send(&AHRSData{Heading: 270}))
		select {
		case msg = <-got:
			require.NotNil(t, msg, "no record relayed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	d := new(AHRSData)
	require.NoError(t, json.Unmarshal(msg, d))
	assert.Equal(t, 270.0, d.Heading)

	cancel()
	assert.Eventually(t, func() bool { return r.Send(&AHRSData{}) != nil }, time.Second, 10*time.Millisecond)
}

type recorder struct {
	frames []*AHRSData
}

func (r *recorder) Send(d *AHRSData) error {
	r.frames = append(r.frames, d)
	return nil
}

func TestFramesAndReplay(t *testing.T) {
	truth := ahrs.ToQuaternion(10*ahrs.Deg, -20*ahrs.Deg, -90*ahrs.Deg)
	ref := ahrs.DefaultReference()
	acc := ref.PredictGravity(truth)
	mag := ref.PredictMagnetic(truth)
	in := ahrs.Input{Dt: 0.01}
	for i := 0; i < 5; i++ {
		in.Gyr = append(in.Gyr, []float64{0, 0, 0})
		in.Acc = append(in.Acc, acc[:])
		in.Mag = append(in.Mag, mag[:])
	}
	tr, err := ahrs.Estimate(ahrs.DefaultConfig(ahrs.KindEKF), in)
	require.NoError(t, err)

	times := []float64{0, 0.01, 0.02, 0.03, 0.04}
	frames := Frames(tr, in, times, []ahrs.Quaternion{truth, truth, truth, truth, truth})
	require.Len(t, frames, 5)
	f := frames[4]
	assert.Equal(t, tr.ID.String(), f.Run)
	assert.Equal(t, 0.04, f.T)
	assert.InDelta(t, 10, f.Roll, 1e-6)
	assert.InDelta(t, -20, f.Pitch, 1e-6)
	assert.InDelta(t, 90, f.Heading, 1e-6)
	assert.InDelta(t, 90, f.TrueHeading, 1e-9)
	assert.True(t, f.AValid)
	assert.True(t, f.MValid)
	assert.True(t, f.TrueValid)
	assert.Equal(t, "none", f.Fault)
	assert.Greater(t, f.DRoll, 0.0)

	rec := new(recorder)
	start := time.Now()
	require.NoError(t, Replay(context.Background(), rec, frames, 1))
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
	assert.Len(t, rec.frames, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Replay(ctx, new(recorder), frames, 0), context.Canceled)
}
