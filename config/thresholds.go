package config

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Directions used by the flat threshold keys
const (
	DirectionIncoming = "INCOMING"
	DirectionOutgoing = "OUTGOING"
)

// Get returns a brute force threshold in the flat key space used by the
// legacy threshold files, e.g. Get("SSH", "INCOMING", "MIN_PACKETS") or
// Get("SSH", "", "LIST_THRESHOLD"). Timeouts are returned in seconds.
func (c *Config) Get(protocol, direction, parameter string) (float64, error) {
	proto, err := c.S.BruteForce.Protocol(protocol)
	if err != nil {
		return 0, err
	}

	if direction != "" {
		rule, err := proto.rule(direction)
		if err != nil {
			return 0, err
		}
		switch parameter {
		case "MIN_PACKETS":
			return float64(rule.MinPackets), nil
		case "MAX_PACKETS":
			return float64(rule.MaxPackets), nil
		case "MIN_BYTES":
			return float64(rule.MinBytes), nil
		case "MAX_BYTES":
			return float64(rule.MaxBytes), nil
		case "FLAGS":
			return float64(rule.Mask), nil
		}
		return 0, fmt.Errorf("unknown %s %s parameter %q", protocol, direction, parameter)
	}

	switch parameter {
	case "LIST_SIZE":
		return float64(proto.ListSize), nil
	case "LIST_SIZE_BOTTOM_THRESHOLD":
		return float64(proto.ListSizeBottomThreshold), nil
	case "LIST_THRESHOLD":
		return float64(proto.ListThreshold), nil
	case "RECORD_TIMEOUT":
		return proto.RecordTimeout.Seconds(), nil
	case "HOST_DELETE_TIMEOUT":
		return proto.HostDeleteTimeout.Seconds(), nil
	case "REPORT_TIMEOUT":
		return proto.ReportTimeout.Seconds(), nil
	case "CHECK_INTERVAL":
		return proto.CheckInterval.Seconds(), nil
	case "MIN_RATIO_TO_KEEP_TRACKING":
		return proto.MinRatioToKeepTracking, nil
	case "MIN_EVENTS_TO_REPORT":
		return float64(proto.MinEventsToReport), nil
	}
	return 0, fmt.Errorf("unknown %s parameter %q", protocol, parameter)
}

func (p *ProtocolStaticCfg) rule(direction string) (*RuleCfg, error) {
	switch direction {
	case DirectionIncoming:
		return &p.Incoming, nil
	case DirectionOutgoing:
		return &p.Outgoing, nil
	}
	return nil, fmt.Errorf("unknown direction %q", direction)
}

// ApplyThresholds parses a flat threshold file of KEY=VALUE lines such as
// SSH_LIST_THRESHOLD=45 or RDP_OUTGOING_MAX_BYTES=25000 and stores the
// values in the brute force section. Blank lines and lines starting with
// '#' are ignored.
func (c *Config) ApplyThresholds(contents []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return fmt.Errorf("line %d: expected KEY=VALUE", lineNo)
		}
		key := strings.ToUpper(strings.TrimSpace(line[:eq]))
		value := strings.TrimSpace(line[eq+1:])

		protocol, direction, parameter := splitThresholdKey(key)
		if err := c.setThreshold(protocol, direction, parameter, value); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

// splitThresholdKey splits SSH_INCOMING_MIN_PACKETS into its protocol,
// direction and parameter parts. The direction is empty for keys that
// apply to both directions.
func splitThresholdKey(key string) (string, string, string) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) < 2 {
		return key, "", ""
	}
	if len(parts) == 3 && (parts[1] == DirectionIncoming || parts[1] == DirectionOutgoing) {
		return parts[0], parts[1], parts[2]
	}
	return parts[0], "", strings.Join(parts[1:], "_")
}

func (c *Config) setThreshold(protocol, direction, parameter, value string) error {
	proto, err := c.S.BruteForce.Protocol(protocol)
	if err != nil {
		return err
	}

	if direction != "" {
		rule, err := proto.rule(direction)
		if err != nil {
			return err
		}
		switch parameter {
		case "MIN_PACKETS":
			return parseUint(value, &rule.MinPackets)
		case "MAX_PACKETS":
			return parseUint(value, &rule.MaxPackets)
		case "MIN_BYTES":
			return parseUint(value, &rule.MinBytes)
		case "MAX_BYTES":
			return parseUint(value, &rule.MaxBytes)
		case "FLAGS":
			rule.Flags = value
			return nil
		case "EXACT_FLAGS":
			exact, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			rule.ExactFlags = exact
			return nil
		}
		return fmt.Errorf("unknown %s %s parameter %q", protocol, direction, parameter)
	}

	switch parameter {
	case "LIST_SIZE":
		return parseInt(value, &proto.ListSize)
	case "LIST_SIZE_BOTTOM_THRESHOLD":
		return parseInt(value, &proto.ListSizeBottomThreshold)
	case "LIST_THRESHOLD":
		return parseInt(value, &proto.ListThreshold)
	case "RECORD_TIMEOUT":
		return parseSeconds(value, &proto.RecordTimeout)
	case "HOST_DELETE_TIMEOUT":
		return parseSeconds(value, &proto.HostDeleteTimeout)
	case "REPORT_TIMEOUT":
		return parseSeconds(value, &proto.ReportTimeout)
	case "CHECK_INTERVAL":
		return parseSeconds(value, &proto.CheckInterval)
	case "MIN_RATIO_TO_KEEP_TRACKING":
		ratio, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		proto.MinRatioToKeepTracking = ratio
		return nil
	case "MIN_EVENTS_TO_REPORT":
		return parseInt(value, &proto.MinEventsToReport)
	}
	return fmt.Errorf("unknown %s parameter %q", protocol, parameter)
}

func parseUint(value string, out *uint64) error {
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return err
	}
	*out = v
	return nil
}

func parseInt(value string, out *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*out = v
	return nil
}

func parseSeconds(value string, out *time.Duration) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	*out = time.Duration(v * float64(time.Second))
	return nil
}
