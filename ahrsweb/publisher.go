package ahrsweb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/westphae/goahrs/internal/log"
)

// Sender accepts streamed records. Both Room and Publisher are Senders.
type Sender interface {
	Send(d *AHRSData) error
}

// Publisher sends records to a Room served by another process.
type Publisher struct {
	url string
	c   *websocket.Conn
}

// LocalURL is the address of a Room mounted at Path on this host.
func LocalURL(port int) string {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("localhost:%d", port), Path: Path}
	return u.String()
}

// NewPublisher connects to the room at the websocket URL u.
func NewPublisher(u string) (p *Publisher, err error) {
	p = &Publisher{url: u}
	if err = p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() (err error) {
	p.c, _, err = websocket.DefaultDialer.Dial(p.url, nil)
	return errors.Wrapf(err, "ahrsweb: dialing %s", p.url)
}

// Send writes one record. A failed write drops the record and reconnects.
func (p *Publisher) Send(d *AHRSData) error {
	msg, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "ahrsweb: marshalling data")
	}
	if err := p.c.WriteMessage(websocket.TextMessage, msg); err != nil {
		log.Warn("ahrsweb: error writing to websocket", "err", err)
		p.c.Close()
		if err2 := p.connect(); err2 != nil {
			return errors.WithMessage(err2, err.Error())
		}
		return errors.Wrap(err, "ahrsweb: record dropped")
	}
	return nil
}

// Close says goodbye to the room and closes the connection.
func (p *Publisher) Close() error {
	defer p.c.Close()
	err := p.c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return errors.Wrap(err, "ahrsweb: closing websocket")
}

// Replay sends the frames to s, paced by their timestamps divided by speed.
// A speed of zero sends as fast as possible.
func Replay(ctx context.Context, s Sender, frames []*AHRSData, speed float64) error {
	start := time.Now()
	for i, d := range frames {
		if speed > 0 && i > 0 {
			due := start.Add(time.Duration((d.T - frames[0].T) / speed * float64(time.Second)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Until(due)):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Send(d); err != nil {
			return err
		}
	}
	return nil
}
