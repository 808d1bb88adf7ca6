package report

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSSender publishes every report as JSON on a NATS subject
type NATSSender struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSender connects to url
func NewNATSSender(url, subject string) (*NATSSender, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to NATS at %s: %w", url, err)
	}
	return &NATSSender{nc: nc, subject: subject}, nil
}

// Send publishes r
func (s *NATSSender) Send(r *Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject, data)
}

// Close drains pending messages and closes the connection
func (s *NATSSender) Close() error {
	return s.nc.Drain()
}
