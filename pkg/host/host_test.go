package host

import (
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/attack"
	"github.com/activecm/flowsentry/pkg/signature"
	"github.com/activecm/flowsentry/pkg/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func sshSettings(t *testing.T) *config.ProtocolStaticCfg {
	conf, err := config.LoadTestingConfig("")
	require.NoError(t, err)
	return &conf.S.BruteForce.SSH
}

func victim(i int) netip.Addr {
	return netip.MustParseAddr(fmt.Sprintf("10.1.%d.%d", i/256, i%256))
}

func newHost(s *config.ProtocolStaticCfg) *Host {
	h := &Host{}
	h.Init(netip.MustParseAddr("203.0.113.5"), epoch, s.ListSize)
	return h
}

// feed adds count records starting at victim first and runs the state
// machine after each one like the detector does
func feed(h *Host, s *config.ProtocolStaticCfg, first, count int, matched bool, at time.Time) (attack.State, []*Alert) {
	var alerts []*Alert
	state := h.State
	for i := first; i < first+count; i++ {
		h.AddRecord(signature.Incoming, window.Record{Counterpart: victim(i), LastSeen: at, Matched: matched}, s.ListSize)
		var alert *Alert
		state, alert = h.CheckForAttack(at, s)
		if alert != nil {
			alerts = append(alerts, alert)
		}
	}
	return state, alerts
}

func TestThresholdCrossing(t *testing.T) {
	s := sshSettings(t)
	h := newHost(s)

	state, alerts := feed(h, s, 0, 44, true, epoch)
	assert.Equal(t, attack.NoAttack, state)
	assert.Empty(t, alerts)
	assert.False(t, h.Reported())

	state, alerts = feed(h, s, 44, 1, true, epoch)
	assert.Equal(t, attack.NewAttack, state)
	require.Len(t, alerts, 1)
	assert.Equal(t, 45, alerts[0].Intensity)
	assert.Len(t, alerts[0].Victims, 45)
	assert.False(t, alerts[0].EndOfAttack)
	assert.True(t, h.Reported())

	// inside the report timeout nothing else is reported
	state, alerts = feed(h, s, 45, 15, true, epoch.Add(time.Minute))
	assert.Equal(t, attack.ReportWait, state)
	assert.Empty(t, alerts)
}

func TestRepeatReport(t *testing.T) {
	s := sshSettings(t)
	h := newHost(s)
	feed(h, s, 0, 45, true, epoch)

	later := epoch.Add(s.ReportTimeout)
	feed(h, s, 100, 20, true, later.Add(-time.Second))
	state, alert := h.CheckForAttack(later, s)
	assert.Equal(t, attack.Attack, state)
	require.NotNil(t, alert)
	assert.Equal(t, 20, alert.Intensity)
	assert.Equal(t, victim(100), alert.Victims[0])
	assert.Len(t, alert.Victims, 20)
	assert.Equal(t, 0, h.Incoming.MatchedSinceReport())
	assert.Equal(t, later, h.LastReportTime)
}

func TestMinEventsWait(t *testing.T) {
	s := sshSettings(t)
	h := newHost(s)
	feed(h, s, 0, 45, true, epoch)

	feed(h, s, 100, 5, true, epoch.Add(time.Minute))
	state, alert := h.CheckForAttack(epoch.Add(s.ReportTimeout), s)
	assert.Equal(t, attack.MinEventsWait, state)
	assert.Nil(t, alert)
	assert.True(t, state.InAttack())
}

func TestReportEndOfAttack(t *testing.T) {
	s := sshSettings(t)
	h := newHost(s)
	feed(h, s, 0, 45, true, epoch)

	at := epoch.Add(time.Minute)
	feed(h, s, 100, 290, false, at)
	feed(h, s, 400, 10, true, at)
	state, alert := h.CheckForAttack(epoch.Add(s.ReportTimeout), s)

	assert.Equal(t, attack.ReportEndOfAttack, state)
	require.NotNil(t, alert)
	assert.True(t, alert.EndOfAttack)
	assert.Equal(t, 10, alert.Intensity)
	assert.Equal(t, 0, h.Incoming.Len())
	assert.Equal(t, 0, h.Outgoing.Len())
	assert.True(t, h.LastReportTime.IsZero())
	assert.False(t, h.Reported())
}

func TestEndOfAttackAfterEviction(t *testing.T) {
	s := sshSettings(t)
	h := newHost(s)
	feed(h, s, 0, 45, true, epoch)

	now := epoch.Add(s.RecordTimeout + time.Second)
	assert.Equal(t, 45, h.SweepRecords(now, s))
	state, alert := h.CheckForAttack(now, s)
	assert.Equal(t, attack.EndOfAttack, state)
	assert.Nil(t, alert)
	assert.False(t, h.Reported())

	state, _ = h.CheckForAttack(now, s)
	assert.Equal(t, attack.NoAttack, state)
}

func TestFinish(t *testing.T) {
	s := sshSettings(t)
	h := newHost(s)
	feed(h, s, 0, 10, true, epoch)
	assert.Nil(t, h.Finish(epoch))

	feed(h, s, 10, 35, true, epoch)
	feed(h, s, 100, 3, true, epoch)
	alert := h.Finish(epoch.Add(time.Minute))
	require.NotNil(t, alert)
	assert.True(t, alert.EndOfAttack)
	assert.Equal(t, 3, alert.Intensity)
	assert.Equal(t, 0, h.Incoming.Len())
	assert.False(t, h.State.InAttack())
}

func TestIdleAndResize(t *testing.T) {
	s := sshSettings(t)
	h := newHost(s)
	h.AddRecord(signature.Outgoing, window.Record{Counterpart: victim(1), LastSeen: epoch.Add(time.Minute), Matched: true}, 5)
	assert.Equal(t, 5, h.Outgoing.Capacity())
	assert.Equal(t, epoch.Add(time.Minute), h.LastReceived)

	assert.False(t, h.Idle(epoch.Add(s.HostDeleteTimeout), s))
	assert.True(t, h.Idle(epoch.Add(s.HostDeleteTimeout+time.Minute+time.Second), s))
}

func TestListThreshold(t *testing.T) {
	s := sshSettings(t)

	type testCase struct {
		in, out int
		want    float64
		msg     string
	}

	testCases := []testCase{
		{10, 10, 45, "short windows use the fixed threshold"},
		{500, 50, 45, "one window at the bottom threshold"},
		{60, 60, 54, "90% of the larger window"},
		{99, 51, 89.1, "just below 100"},
		{100, 51, 90, "at 100"},
		{199, 60, 90, "hundreds are truncated"},
		{200, 60, 180, "at 200"},
	}

	for _, test := range testCases {
		assert.InDelta(t, test.want, ListThreshold(s, test.in, test.out), 1e-9, test.msg)
	}
}
