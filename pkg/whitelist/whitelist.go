// Package whitelist decides whether a communication is exempt from
// detection. Rules are kept in prefix tries per IP family, one set for
// source addresses and one for destination addresses.
package whitelist

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/activecm/flowsentry/util"
)

// Whitelist is an immutable set of rules. Build a new one to change it.
type Whitelist struct {
	src [2]*trie
	dst [2]*trie

	rules int
}

// family indexes the tries of a Whitelist
func family(addr netip.Addr) int {
	if addr.Is4() {
		return 0
	}
	return 1
}

// New returns a whitelist without rules
func New() *Whitelist {
	return &Whitelist{
		src: [2]*trie{newTrie(), newTrie()},
		dst: [2]*trie{newTrie(), newTrie()},
	}
}

// Len returns the number of rules the whitelist was built from
func (w *Whitelist) Len() int {
	return w.rules
}

// AddSource whitelists traffic sent from prefix to the given service
// ports. No ports means all ports.
func (w *Whitelist) AddSource(prefix netip.Prefix, ports ...uint16) {
	w.src[family(prefix.Addr())].insert(prefix.Masked(), len(ports) == 0, ports)
	w.rules++
}

// AddDestination whitelists traffic sent to prefix on the given ports.
// No ports means all ports.
func (w *Whitelist) AddDestination(prefix netip.Prefix, ports ...uint16) {
	w.dst[family(prefix.Addr())].insert(prefix.Masked(), len(ports) == 0, ports)
	w.rules++
}

// IsWhitelisted reports whether a communication from src:sport to
// dst:dport is whitelisted. Both rule kinds restrict the destination
// port, which is the service being talked to.
func (w *Whitelist) IsWhitelisted(src, dst netip.Addr, sport, dport uint16) bool {
	if w == nil {
		return false
	}
	src, dst = src.Unmap(), dst.Unmap()
	if src.IsValid() && w.src[family(src)].match(src, dport) {
		return true
	}
	if dst.IsValid() && w.dst[family(dst)].match(dst, dport) {
		return true
	}
	return false
}

// Parse reads whitelist rules, one per line:
//
//	src 10.0.0.0/8 *
//	dst 192.0.2.10 22,3389
//
// A missing port list means all ports. Blank lines and lines starting
// with '#' are skipped.
func Parse(r io.Reader) (*Whitelist, error) {
	w := New()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("line %d: expected <src|dst> <address> [ports]", lineNo)
		}

		prefix, err := util.ParsePrefix(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		var ports []uint16
		if len(fields) == 3 && fields[2] != "*" {
			ports, err = parsePorts(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}

		switch strings.ToLower(fields[0]) {
		case "src":
			w.AddSource(prefix, ports...)
		case "dst":
			w.AddDestination(prefix, ports...)
		default:
			return nil, fmt.Errorf("line %d: unknown rule direction %q", lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return w, nil
}

func parsePorts(list string) ([]uint16, error) {
	var ports []uint16
	for _, p := range strings.Split(list, ",") {
		port, err := strconv.ParseUint(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", p)
		}
		ports = append(ports, uint16(port))
	}
	return ports, nil
}

// Load reads a whitelist file. An empty path or a missing file yields an
// empty whitelist.
func Load(path string) (*Whitelist, error) {
	if path == "" {
		return New(), nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Holder publishes the active whitelist to the detection loop. Reload
// runs on another goroutine and swaps the whole structure at once.
type Holder struct {
	path    string
	current atomic.Pointer[Whitelist]
}

// NewHolder loads path and returns a holder serving it
func NewHolder(path string) (*Holder, error) {
	w, err := Load(path)
	if err != nil {
		return nil, err
	}
	h := &Holder{path: path}
	h.current.Store(w)
	return h, nil
}

// Current returns the active whitelist
func (h *Holder) Current() *Whitelist {
	return h.current.Load()
}

// Path returns the file the holder reloads from
func (h *Holder) Path() string {
	return h.path
}

// Reload parses the file again. On failure the active whitelist is kept.
func (h *Holder) Reload() error {
	w, err := Load(h.path)
	if err != nil {
		return err
	}
	h.current.Store(w)
	return nil
}
