// Package report defines the alerts emitted by the detectors and the
// senders that deliver them.
package report

import (
	"net/netip"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Detector names
const (
	DetectorBruteForce = "bruteforce"
	DetectorDNSTunnel  = "dnstunnel"
	DetectorBlacklist  = "blacklist"
)

// Report classes
const (
	ClassBruteForce   = "brute-force"
	ClassTunnel       = "tunnel"
	ClassOtherAnomaly = "other-anomaly"
	ClassBlacklisted  = "blacklisted"
)

// Report is one alert about one host
type Report struct {
	ID          string                 `json:"id" bson:"_id"`
	Detector    string                 `json:"detector" bson:"detector"`
	Protocol    string                 `json:"protocol,omitempty" bson:"protocol,omitempty"`
	Class       string                 `json:"class" bson:"class"`
	HostIP      string                 `json:"host_ip" bson:"host_ip"`
	DstPort     uint16                 `json:"dst_port" bson:"dst_port"`
	Timestamp   time.Time              `json:"timestamp" bson:"timestamp"`
	Intensity   int                    `json:"intensity" bson:"intensity"`
	EndOfAttack bool                   `json:"end_of_attack" bson:"end_of_attack"`
	Victims     []string               `json:"victims" bson:"victims"`
	Detail      map[string]interface{} `json:"detail,omitempty" bson:"detail,omitempty"`
}

// New builds a report with a fresh ID. Victims are rendered in address
// order.
func New(detector, class string, host netip.Addr, dstPort uint16, ts time.Time,
	intensity int, endOfAttack bool, victims []netip.Addr) *Report {

	sorted := append([]netip.Addr(nil), victims...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	names := make([]string, len(sorted))
	for i, v := range sorted {
		names[i] = v.String()
	}

	return &Report{
		ID:          uuid.New().String(),
		Detector:    detector,
		Class:       class,
		HostIP:      host.String(),
		DstPort:     dstPort,
		Timestamp:   ts,
		Intensity:   intensity,
		EndOfAttack: endOfAttack,
		Victims:     names,
	}
}

// Sender delivers reports. Detectors ignore delivery failures, so a
// Sender should log what it could not deliver.
type Sender interface {
	Send(r *Report) error
}
