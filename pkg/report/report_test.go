package report

import (
	"errors"
	"io"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sample() *Report {
	victims := []netip.Addr{
		netip.MustParseAddr("10.0.0.20"),
		netip.MustParseAddr("10.0.0.3"),
		netip.MustParseAddr("10.0.0.100"),
	}
	r := New(DetectorBruteForce, ClassBruteForce, netip.MustParseAddr("203.0.113.9"), 22, ts, 45, false, victims)
	r.Protocol = "SSH"
	r.Detail = map[string]interface{}{"direction": "incoming"}
	return r
}

func TestNewSortsVictims(t *testing.T) {
	r := sample()
	assert.Equal(t, []string{"10.0.0.3", "10.0.0.20", "10.0.0.100"}, r.Victims)
	assert.Equal(t, "203.0.113.9", r.HostIP)
	assert.Len(t, r.ID, 36)
	assert.NotEqual(t, r.ID, sample().ID)
}

func TestFileSenderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.json")
	s, err := NewFileSender(path)
	require.NoError(t, err)

	first, second := sample(), sample()
	second.EndOfAttack = true
	require.NoError(t, s.Send(first))
	require.NoError(t, s.Send(second))
	require.NoError(t, s.Close())

	reports, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, first.ID, reports[0].ID)
	assert.Equal(t, first.Victims, reports[0].Victims)
	assert.True(t, ts.Equal(reports[0].Timestamp))
	assert.Equal(t, "incoming", reports[0].Detail["direction"])
	assert.True(t, reports[1].EndOfAttack)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(strings.NewReader("{\"id\":\"a\"}\nnot json\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

type failingSender struct{}

func (failingSender) Send(*Report) error { return errors.New("unreachable") }

func TestMultiSenderSwallowsErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rec := &Recorder{}
	m := NewMultiSender(logger, failingSender{}, rec)

	assert.NoError(t, m.Send(sample()))
	assert.Len(t, rec.Reports(), 1)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)

	rec.Reset()
	assert.Empty(t, rec.Reports())
	assert.NoError(t, m.Close())
}

func TestLogSender(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.Out = io.Discard
	assert.NoError(t, NewLogSender(logger).Send(sample()))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "SSH", hook.LastEntry().Data["protocol"])
	assert.Equal(t, 3, hook.LastEntry().Data["victims"])
}
