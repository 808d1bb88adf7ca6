// Package domains counts how unique the domain names requested by one DNS
// client are. Names are stored in a prefix tree keyed by labels from the
// top level down, so that a.example.com and b.example.com share the
// example.com branch.
package domains

import (
	"strings"
)

const root int32 = 0

type node struct {
	label    string
	parent   int32
	children map[string]int32

	// inserts of the exact name ending at this node
	count uint64
	// distinct names ending at or below this node
	distinct uint64
}

// Tracker is a domain prefix tree with the three counters used to decide
// whether a client's queries look like a tunnel
type Tracker struct {
	nodes []node

	inserting  uint64
	different  uint64
	searchOnce uint64
}

// NewTracker returns an empty tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.Clear()
	return t
}

// Clear forgets every inserted name and zeroes the counters
func (t *Tracker) Clear() {
	t.nodes = append(t.nodes[:0], node{parent: -1})
	t.inserting, t.different, t.searchOnce = 0, 0, 0
}

// Insert records one query for name. Names are compared case
// insensitively and a trailing root dot is ignored. A name without any
// label is not counted.
func (t *Tracker) Insert(name string) {
	labels := splitLabels(name)
	if len(labels) == 0 {
		return
	}
	t.inserting++

	path := make([]int32, 0, len(labels)+1)
	cur := root
	path = append(path, cur)
	for i := len(labels) - 1; i >= 0; i-- {
		cur = t.child(cur, labels[i])
		path = append(path, cur)
	}

	switch t.nodes[cur].count {
	case 0:
		t.different++
		t.searchOnce++
		for _, idx := range path {
			t.nodes[idx].distinct++
		}
	case 1:
		t.searchOnce--
	}
	t.nodes[cur].count++
}

// child returns the child of parent for label, creating it if needed
func (t *Tracker) child(parent int32, label string) int32 {
	if idx, ok := t.nodes[parent].children[label]; ok {
		return idx
	}
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{
		label:  label,
		parent: parent,
	})
	if t.nodes[parent].children == nil {
		t.nodes[parent].children = make(map[string]int32)
	}
	t.nodes[parent].children[label] = idx
	return idx
}

// CountOfInserting returns the number of Insert calls
func (t *Tracker) CountOfInserting() uint64 { return t.inserting }

// CountOfDifferentDomains returns the number of distinct names inserted
func (t *Tracker) CountOfDifferentDomains() uint64 { return t.different }

// CountOfDomainSearchedJustOnce returns the number of distinct names
// inserted exactly once
func (t *Tracker) CountOfDomainSearchedJustOnce() uint64 { return t.searchOnce }

// Ratios returns the share of distinct names and the share of names
// searched just once, both relative to the number of insertions. Both
// are 0 while nothing was inserted.
func (t *Tracker) Ratios() (unique float64, once float64) {
	if t.inserting == 0 {
		return 0, 0
	}
	total := float64(t.inserting)
	return float64(t.different) / total, float64(t.searchOnce) / total
}

// TopSuffix returns the domain suffix of depth labels that has the most
// distinct names at or below it. If no name is that deep, the best suffix
// of the deepest populated level is returned. Ties go to the suffix that
// sorts first.
func (t *Tracker) TopSuffix(depth int) string {
	if len(t.nodes) == 1 || depth < 1 {
		return ""
	}

	level := []int32{root}
	for d := 0; d < depth; d++ {
		var next []int32
		for _, idx := range level {
			for _, c := range t.nodes[idx].children {
				next = append(next, c)
			}
		}
		if len(next) == 0 {
			break
		}
		level = next
	}

	best := int32(-1)
	bestName := ""
	for _, idx := range level {
		name := t.name(idx)
		if best < 0 || t.nodes[idx].distinct > t.nodes[best].distinct ||
			(t.nodes[idx].distinct == t.nodes[best].distinct && name < bestName) {
			best, bestName = idx, name
		}
	}
	return bestName
}

func (t *Tracker) name(idx int32) string {
	var labels []string
	for ; idx > root; idx = t.nodes[idx].parent {
		labels = append(labels, t.nodes[idx].label)
	}
	return strings.Join(labels, ".")
}

func splitLabels(name string) []string {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}
