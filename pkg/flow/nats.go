package flow

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSSource receives one JSON record per message from a NATS subject
type NATSSource struct {
	nc   *nats.Conn
	sub  *nats.Subscription
	msgs chan *nats.Msg
	done chan struct{}
	once sync.Once
}

// NewNATSSource connects to url and subscribes to subject. Up to buffer
// messages are queued while the detection loop is busy.
func NewNATSSource(url, subject string, buffer int) (*NATSSource, error) {
	s := &NATSSource{
		msgs: make(chan *nats.Msg, buffer),
		done: make(chan struct{}),
	}

	nc, err := nats.Connect(url, nats.ClosedHandler(func(*nats.Conn) {
		s.stop()
	}))
	if err != nil {
		return nil, fmt.Errorf("could not connect to NATS at %s: %w", url, err)
	}
	s.nc = nc

	s.sub, err = nc.Subscribe(subject, func(msg *nats.Msg) {
		select {
		case s.msgs <- msg:
		case <-s.done:
		}
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("could not subscribe to %s: %w", subject, err)
	}
	return s, nil
}

func (s *NATSSource) stop() {
	s.once.Do(func() { close(s.done) })
}

// Next blocks until a message arrives or ctx is cancelled. A closed
// connection, including one the client gave up reconnecting, ends the
// stream.
func (s *NATSSource) Next(ctx context.Context) (*Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, io.EOF
	case msg := <-s.msgs:
		rec, err := Decode(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("message on %s: %w", msg.Subject, err)
		}
		return rec, nil
	}
}

// Close unsubscribes and closes the NATS connection
func (s *NATSSource) Close() error {
	s.stop()
	if s.nc == nil || s.nc.IsClosed() {
		return nil
	}

	var err error
	if s.sub != nil {
		err = s.sub.Unsubscribe()
	}
	s.nc.Close()
	return err
}
