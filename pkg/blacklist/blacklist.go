// Package blacklist reports the traffic of addresses found on blacklist
// files.
package blacklist

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/activecm/flowsentry/util"
)

type list struct {
	name     string
	addrs    map[netip.Addr]struct{}
	prefixes []netip.Prefix
}

func (l *list) contains(addr netip.Addr) bool {
	if _, ok := l.addrs[addr]; ok {
		return true
	}
	return util.ContainsIP(l.prefixes, addr)
}

// Blacklist is a set of named address lists. It is not modified once
// built.
type Blacklist struct {
	lists []*list
}

// Parse reads one list of addresses and networks, one per line. Blank
// lines and everything after a '#' are skipped.
func Parse(name string, r io.Reader) (*Blacklist, error) {
	l := &list{name: name, addrs: make(map[netip.Addr]struct{})}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		prefix, err := util.ParsePrefix(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if prefix.IsSingleIP() {
			l.addrs[prefix.Addr()] = struct{}{}
		} else {
			l.prefixes = append(l.prefixes, prefix)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Blacklist{lists: []*list{l}}, nil
}

// Load reads every file into its own list named after the file
func Load(paths []string) (*Blacklist, error) {
	bl := &Blacklist{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		one, err := Parse(ListName(path), f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		bl.lists = append(bl.lists, one.lists...)
	}
	return bl, nil
}

// ListName is the name a list file is reported under
func ListName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Lists returns the names of the loaded lists
func (b *Blacklist) Lists() []string {
	if b == nil {
		return nil
	}
	names := make([]string, len(b.lists))
	for i, l := range b.lists {
		names[i] = l.name
	}
	return names
}

// Len returns the number of entries over all lists
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, l := range b.lists {
		n += len(l.addrs) + len(l.prefixes)
	}
	return n
}

// Lookup returns the sorted names of the lists containing addr
func (b *Blacklist) Lookup(addr netip.Addr) []string {
	if b == nil || !addr.IsValid() {
		return nil
	}
	addr = addr.Unmap()
	var names []string
	for _, l := range b.lists {
		if l.contains(addr) {
			names = append(names, l.name)
		}
	}
	sort.Strings(names)
	return names
}

// Holder publishes the active blacklist to the detection loop
type Holder struct {
	paths   []string
	current atomic.Pointer[Blacklist]
}

// NewHolder loads paths and returns a holder serving them
func NewHolder(paths []string) (*Holder, error) {
	bl, err := Load(paths)
	if err != nil {
		return nil, err
	}
	h := &Holder{paths: paths}
	h.current.Store(bl)
	return h, nil
}

// Current returns the active blacklist
func (h *Holder) Current() *Blacklist {
	return h.current.Load()
}

// Paths returns the files the holder reloads from
func (h *Holder) Paths() []string {
	return h.paths
}

// Reload parses every file again and swaps the blacklist only when all
// of them parsed
func (h *Holder) Reload() error {
	bl, err := Load(h.paths)
	if err != nil {
		return err
	}
	h.current.Store(bl)
	return nil
}
