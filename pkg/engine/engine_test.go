package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"testing"
	"time"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/flow"
	"github.com/activecm/flowsentry/pkg/metrics"
	"github.com/activecm/flowsentry/pkg/report"
	"github.com/activecm/flowsentry/pkg/whitelist"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sliceSource struct {
	records []*flow.Record
	err     error
}

func (s *sliceSource) Next(ctx context.Context) (*flow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.records) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	rec := s.records[0]
	s.records = s.records[1:]
	return rec, nil
}

func (s *sliceSource) Close() error { return nil }

func sshAttack(count int) []*flow.Record {
	var out []*flow.Record
	for i := 0; i < count; i++ {
		at := epoch.Add(time.Duration(i) * time.Second)
		out = append(out, &flow.Record{
			SrcIP:     netip.MustParseAddr("198.51.100.7"),
			DstIP:     netip.MustParseAddr(fmt.Sprintf("10.0.0.%d", i+1)),
			SrcPort:   50000 + uint16(i),
			DstPort:   22,
			Protocol:  flow.ProtocolTCP,
			Packets:   20,
			Bytes:     2000,
			TCPFlags:  flow.SYN | flow.ACK | flow.PSH,
			TimeFirst: at,
			TimeLast:  at,
		})
	}
	return out
}

func newTestEngine(t *testing.T, wl *whitelist.Holder) (*Engine, *report.Recorder) {
	conf, err := config.LoadTestingConfig("")
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	rec := &report.Recorder{}
	m := metrics.New()
	e := New(config.NewStore(conf, ""), wl, nil, Detectors(m.Sender(rec), logger), m, logger)
	return e, rec
}

func TestRunReportsAndFlushes(t *testing.T) {
	e, rec := newTestEngine(t, nil)

	require.NoError(t, e.Run(context.Background(), &sliceSource{records: sshAttack(60)}))

	reports := rec.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "SSH", reports[0].Protocol)
	assert.False(t, reports[0].EndOfAttack)
	assert.True(t, reports[1].EndOfAttack)
	assert.Equal(t, 15, reports[1].Intensity)

	status := e.Status()
	assert.Equal(t, uint64(60), status.Flows)
	assert.Equal(t, epoch.Add(59*time.Second), status.LastFlow)
	assert.Equal(t, 1, status.Tracked["bruteforce/ssh"])
	assert.Equal(t, 0, status.Tracked["bruteforce/rdp"])
	assert.Equal(t, 0, status.Tracked["dnstunnel"])
}

func TestRunWhitelisted(t *testing.T) {
	wl, err := whitelist.NewHolder("")
	require.NoError(t, err)
	wl.Current().AddSource(netip.MustParsePrefix("198.51.100.0/24"), 22)

	e, rec := newTestEngine(t, wl)
	require.NoError(t, e.Run(context.Background(), &sliceSource{records: sshAttack(60)}))
	assert.Empty(t, rec.Reports())
}

func TestRunStreamError(t *testing.T) {
	e, rec := newTestEngine(t, nil)

	broken := fmt.Errorf("flows.json:46: %w", flow.ErrCorruptRecord)
	err := e.Run(context.Background(), &sliceSource{records: sshAttack(45), err: broken})
	require.Error(t, err)
	assert.True(t, errors.Is(err, flow.ErrCorruptRecord))

	// the attack was reported but not ended
	reports := rec.Reports()
	require.Len(t, reports, 1)
	assert.False(t, reports[0].EndOfAttack)
}

func TestRunCancelled(t *testing.T) {
	e, rec := newTestEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx, &sliceSource{records: sshAttack(60)}))
	assert.Empty(t, rec.Reports())
	assert.Equal(t, uint64(0), e.Status().Flows)
}
