package flow

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// IP protocol numbers
const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// ErrCorruptRecord is returned when a flow record cannot be decoded. It
// ends the stream.
var ErrCorruptRecord = errors.New("corrupt flow record")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one unidirectional aggregated flow
type Record struct {
	SrcIP     netip.Addr `json:"src_ip"`
	DstIP     netip.Addr `json:"dst_ip"`
	SrcPort   uint16     `json:"src_port"`
	DstPort   uint16     `json:"dst_port"`
	Protocol  uint8      `json:"protocol"`
	Packets   uint64     `json:"packets"`
	Bytes     uint64     `json:"bytes"`
	TCPFlags  uint8      `json:"tcp_flags"`
	TimeFirst time.Time  `json:"time_first"`
	TimeLast  time.Time  `json:"time_last"`

	// decoded DNS fields, empty for other traffic
	DNSName    string `json:"dns_name,omitempty"`
	DNSQType   uint16 `json:"dns_qtype,omitempty"`
	DNSRLength uint16 `json:"dns_rlength,omitempty"`
}

// BytesPerPacket returns the average packet size of the flow
func (r *Record) BytesPerPacket() float64 {
	if r.Packets == 0 {
		return 0
	}
	return float64(r.Bytes) / float64(r.Packets)
}

// Decode parses one JSON encoded record. IPv4 mapped addresses are
// unmapped. A record without both addresses or without an end time is
// reported as ErrCorruptRecord.
func Decode(data []byte) (*Record, error) {
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if !rec.SrcIP.IsValid() || !rec.DstIP.IsValid() {
		return nil, fmt.Errorf("%w: missing address", ErrCorruptRecord)
	}
	if rec.TimeLast.IsZero() {
		return nil, fmt.Errorf("%w: missing time_last", ErrCorruptRecord)
	}
	if rec.TimeFirst.IsZero() {
		rec.TimeFirst = rec.TimeLast
	}
	rec.SrcIP = rec.SrcIP.Unmap()
	rec.DstIP = rec.DstIP.Unmap()
	return rec, nil
}

// Encode returns the JSON encoding of r
func Encode(r *Record) ([]byte, error) {
	return json.Marshal(r)
}
