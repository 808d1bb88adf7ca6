package dnstunnel

import (
	"net/netip"
	"sort"
	"time"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/attack"
	"github.com/activecm/flowsentry/pkg/domains"
	"github.com/activecm/flowsentry/pkg/report"
	"github.com/activecm/flowsentry/pkg/stats"
)

// Why a client was classified
const (
	ReasonUniqueDomains  = "unique-domains"
	ReasonLargeResponses = "large-responses"
	ReasonRepeatedNames  = "repeated-domains"
)

// Host is the state of one DNS client since its last report or the start
// of its current observation window, whichever is later
type Host struct {
	IP             netip.Addr
	FirstSeen      time.Time
	LastSeen       time.Time
	LastReportTime time.Time
	WindowStart    time.Time
	State          attack.State
	Class          string

	Requests  stats.Running
	Responses stats.Running
	Domains   *domains.Tracker
	Servers   map[netip.Addr]struct{}
}

func (h *Host) init(ip netip.Addr, now time.Time) {
	*h = Host{
		IP:        ip,
		FirstSeen:   now,
		LastSeen:    now,
		WindowStart: now,
		State:       attack.NoAttack,
		Domains:     domains.NewTracker(),
		Servers:     make(map[netip.Addr]struct{}),
	}
}

// Reported tells whether an attack of the client is reported and not
// ended yet
func (h *Host) Reported() bool {
	return !h.LastReportTime.IsZero()
}

func (h *Host) seen(now time.Time) {
	if now.After(h.LastSeen) {
		h.LastSeen = now
	}
}

// clear starts a new observation window at now
func (h *Host) clear(now time.Time) {
	h.WindowStart = now
	h.Requests.Clear()
	h.Responses.Clear()
	h.Domains.Clear()
	h.Servers = make(map[netip.Addr]struct{})
}

// classify returns the report class and reason that the traffic since
// the last report deserves, or empty strings when it looks normal.
// Highly dispersed names point at a tunnel, a few names repeated over
// and over at some other abuse.
func (h *Host) classify(s *config.DNSTunnelStaticCfg) (class string, reason string) {
	unique, once := h.Domains.Ratios()
	requests := h.Requests.N()

	if requests > uint64(s.MinDNSRequestCountTunnel) &&
		unique > s.MaxPercentOfUniqueDomains && once > s.MaxPercentOfDomainSearchingJustOnce {
		return report.ClassTunnel, ReasonUniqueDomains
	}
	if h.Responses.N() > uint64(s.MinDNSRequestCountTunnel) &&
		h.Responses.Mean() > s.MaxMeanResponseSize && h.Responses.Variance() < s.MaxVarianceResponseSize {
		return report.ClassTunnel, ReasonLargeResponses
	}
	if requests > uint64(s.MinDNSRequestCountOther) &&
		unique < s.MinPercentOfUniqueDomains && once < s.MinPercentOfDomainSearchingJustOnce {
		return report.ClassOtherAnomaly, ReasonRepeatedNames
	}
	return "", ""
}

// windowDone tells whether the current observation window has held
// enough queries for every classification or has lasted long enough.
// A client that looked normal over a finished window starts over.
func (h *Host) windowDone(now time.Time, s *config.DNSTunnelStaticCfg) bool {
	full := s.MinDNSRequestCountTunnel
	if s.MinDNSRequestCountOther > full {
		full = s.MinDNSRequestCountOther
	}
	if h.Requests.N() > uint64(full) || h.Responses.N() > uint64(full) {
		return true
	}
	return now.Sub(h.WindowStart) >= s.ObservationWindow
}

// check runs one step of the state machine at flow time now. It returns
// the report to send, if any.
func (h *Host) check(now time.Time, s *config.DNSTunnelStaticCfg) *report.Report {
	if !h.State.InAttack() {
		class, reason := h.classify(s)
		if class == "" {
			h.State = attack.NoAttack
			if h.windowDone(now, s) {
				h.clear(now)
			}
			return nil
		}
		h.Class = class
		h.State = attack.NewAttack
		return h.report(now, s, reason, false)
	}

	if now.Sub(h.LastReportTime) < s.ReportTimeout {
		h.State = attack.ReportWait
		return nil
	}

	if class, reason := h.classify(s); class != "" {
		h.Class = class
		h.State = attack.Attack
		return h.report(now, s, reason, false)
	}
	h.State = attack.ReportEndOfAttack
	return h.report(now, s, "", true)
}

// finish ends an attack in progress before the host goes away
func (h *Host) finish(now time.Time, s *config.DNSTunnelStaticCfg) *report.Report {
	if !h.State.InAttack() {
		return nil
	}
	h.State = attack.ReportEndOfAttack
	return h.report(now, s, "", true)
}

func (h *Host) report(now time.Time, s *config.DNSTunnelStaticCfg, reason string, end bool) *report.Report {
	servers := make([]netip.Addr, 0, len(h.Servers))
	for addr := range h.Servers {
		servers = append(servers, addr)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Less(servers[j]) })

	unique, once := h.Domains.Ratios()
	r := report.New(report.DetectorDNSTunnel, h.Class, h.IP, s.Port, now, int(h.Requests.N()), end, servers)
	r.Protocol = "DNS"
	r.Detail = map[string]interface{}{
		"state":             h.State.String(),
		"requests":          h.Requests.N(),
		"responses":         h.Responses.N(),
		"unique_ratio":      unique,
		"just_once_ratio":   once,
		"request_mean":      h.Requests.Mean(),
		"response_mean":     h.Responses.Mean(),
		"response_variance": h.Responses.Variance(),
	}
	if reason != "" {
		r.Detail["reason"] = reason
	}
	if top := h.Domains.TopSuffix(s.TopSuffixDepth); top != "" {
		r.Detail["top_domain"] = top
	}

	if end {
		h.LastReportTime = time.Time{}
		h.Class = ""
	} else {
		h.LastReportTime = now
	}
	h.clear(now)
	return r
}
