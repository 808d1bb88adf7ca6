package whitelist

import (
	"net/netip"
)

// portRule restricts a whitelisted prefix to some ports
type portRule struct {
	all   bool
	ports map[uint16]struct{}
}

func (r *portRule) allows(port uint16) bool {
	if r.all {
		return true
	}
	_, ok := r.ports[port]
	return ok
}

func (r *portRule) merge(all bool, ports []uint16) {
	if all {
		r.all = true
		r.ports = nil
		return
	}
	if r.all {
		return
	}
	if r.ports == nil {
		r.ports = make(map[uint16]struct{}, len(ports))
	}
	for _, p := range ports {
		r.ports[p] = struct{}{}
	}
}

type trieNode struct {
	child [2]int32
	rule  *portRule
}

// trie is a binary prefix trie over the address bits of one IP family.
// Nodes live in an arena and refer to their children by index; 0 is the
// root and doubles as "no child" since the root is nobody's child.
type trie struct {
	nodes []trieNode
}

func newTrie() *trie {
	return &trie{nodes: []trieNode{{}}}
}

func bit(b []byte, i int) int {
	return int(b[i/8]>>(7-uint(i%8))) & 1
}

func (t *trie) insert(prefix netip.Prefix, all bool, ports []uint16) {
	raw := prefix.Addr().AsSlice()
	cur := int32(0)
	for i := 0; i < prefix.Bits(); i++ {
		b := bit(raw, i)
		next := t.nodes[cur].child[b]
		if next == 0 {
			next = int32(len(t.nodes))
			t.nodes = append(t.nodes, trieNode{})
			t.nodes[cur].child[b] = next
		}
		cur = next
	}
	if t.nodes[cur].rule == nil {
		t.nodes[cur].rule = &portRule{}
	}
	t.nodes[cur].rule.merge(all, ports)
}

// match walks the path of addr and tries the rules found on it from the
// longest prefix to the shortest
func (t *trie) match(addr netip.Addr, port uint16) bool {
	var path [129]*portRule
	raw := addr.AsSlice()
	n := 0
	cur := int32(0)
	if r := t.nodes[0].rule; r != nil {
		path[n] = r
		n++
	}
	for i := 0; i < addr.BitLen(); i++ {
		cur = t.nodes[cur].child[bit(raw, i)]
		if cur == 0 {
			break
		}
		if r := t.nodes[cur].rule; r != nil {
			path[n] = r
			n++
		}
	}
	for i := n - 1; i >= 0; i-- {
		if path[i].allows(port) {
			return true
		}
	}
	return false
}
