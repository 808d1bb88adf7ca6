package flow

import (
	"fmt"
	"strings"
)

// TCP flag bits as carried in the aggregated flag byte of a flow
const (
	FIN uint8 = 1 << iota
	SYN
	RST
	PSH
	ACK
	URG
	ECE
	CWR
)

var flagNames = []struct {
	name string
	bit  uint8
}{
	{"FIN", FIN}, {"SYN", SYN}, {"RST", RST}, {"PSH", PSH},
	{"ACK", ACK}, {"URG", URG}, {"ECE", ECE}, {"CWR", CWR},
}

// ParseTCPFlags converts a list of flag names such as "SYN|ACK|PSH" into
// the corresponding flag byte. Names may be separated by '|', ',' or
// whitespace and are case insensitive.
func ParseTCPFlags(s string) (uint8, error) {
	var out uint8
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' ' || r == '\t'
	})
	for _, f := range fields {
		found := false
		for _, fn := range flagNames {
			if strings.EqualFold(f, fn.name) {
				out |= fn.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown tcp flag %q", f)
		}
	}
	return out, nil
}

// FormatTCPFlags renders a flag byte as a '|' separated list of names
func FormatTCPFlags(flags uint8) string {
	var names []string
	for _, fn := range flagNames {
		if flags&fn.bit != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}
