// Package ipindex provides an ordered B+-tree keyed by IP address.
//
// Nodes live in an arena and refer to each other by index. Leaves are
// threaded into a doubly linked list so a Cursor can walk every entry in
// key order, deleting as it goes, without searching from the root again.
package ipindex

import (
	"fmt"
	"sort"
)

const nilNode int32 = -1

// DefaultOrder is the branching factor used by NewIndex callers that
// have no reason to pick another one
const DefaultOrder = 16

type node[V any] struct {
	leaf     bool
	keys     []Key
	values   []*V    // leaves only
	children []int32 // inner nodes only
	parent   int32
	prev     int32 // leaves only
	next     int32 // leaves only
}

// location addresses one slot of one leaf
type location struct {
	node int32
	pos  int
}

// Tree is a B+-tree of order M mapping keys to values of type V. Leaves
// hold at most M-1 keys and inner nodes at most M children. Values are
// allocated once on insert and keep their address until deleted.
//
// A Tree must not be used from more than one goroutine at a time.
type Tree[V any] struct {
	order int
	nodes []node[V]
	free  []int32
	root  int32
	head  int32
	size  int
}

// New creates an empty tree of the given order. The order must be at least 3.
func New[V any](order int) *Tree[V] {
	if order < 3 {
		panic(fmt.Sprintf("ipindex: order %d is below the minimum of 3", order))
	}
	t := &Tree[V]{order: order}
	t.root = t.alloc(true)
	t.head = t.root
	return t
}

// Len returns the number of keys held by the tree
func (t *Tree[V]) Len() int {
	return t.size
}

// Order returns the branching factor of the tree
func (t *Tree[V]) Order() int {
	return t.order
}

func (t *Tree[V]) minLeafKeys() int {
	return t.order / 2
}

func (t *Tree[V]) minChildren() int {
	return (t.order + 1) / 2
}

func (t *Tree[V]) alloc(leaf bool) int32 {
	n := node[V]{leaf: leaf, parent: nilNode, prev: nilNode, next: nilNode}
	if k := len(t.free); k > 0 {
		idx := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[idx] = n
		return idx
	}
	t.nodes = append(t.nodes, n)
	return int32(len(t.nodes) - 1)
}

func (t *Tree[V]) release(idx int32) {
	t.nodes[idx] = node[V]{parent: nilNode, prev: nilNode, next: nilNode}
	t.free = append(t.free, idx)
}

// childIndex returns the child to descend into, which is the number of
// separators less than or equal to k
func childIndex(keys []Key, k Key) int {
	return sort.Search(len(keys), func(i int) bool { return k.Less(keys[i]) })
}

// searchLeaf returns the position of the first key not less than k
func searchLeaf(keys []Key, k Key) (int, bool) {
	i := sort.Search(len(keys), func(i int) bool { return !keys[i].Less(k) })
	return i, i < len(keys) && keys[i] == k
}

func (t *Tree[V]) findLeaf(k Key) int32 {
	idx := t.root
	for !t.nodes[idx].leaf {
		n := &t.nodes[idx]
		idx = n.children[childIndex(n.keys, k)]
	}
	return idx
}

func (t *Tree[V]) indexInParent(parent, child int32) int {
	for i, c := range t.nodes[parent].children {
		if c == child {
			return i
		}
	}
	panic(fmt.Sprintf("ipindex: node %d is not a child of its parent %d", child, parent))
}

// Get returns the value stored under k
func (t *Tree[V]) Get(k Key) (*V, bool) {
	n := &t.nodes[t.findLeaf(k)]
	pos, found := searchLeaf(n.keys, k)
	if !found {
		return nil, false
	}
	return n.values[pos], true
}

// FindOrInsert returns the value stored under k, creating a zero value if
// the key is absent. The boolean reports whether the key already existed.
func (t *Tree[V]) FindOrInsert(k Key) (*V, bool) {
	leaf := t.findLeaf(k)
	n := &t.nodes[leaf]
	pos, found := searchLeaf(n.keys, k)
	if found {
		return n.values[pos], true
	}

	v := new(V)
	n.keys = insertAt(n.keys, pos, k)
	n.values = insertAt(n.values, pos, v)
	t.size++

	if len(n.keys) > t.order-1 {
		t.splitLeaf(leaf)
	}
	return v, false
}

func (t *Tree[V]) splitLeaf(idx int32) {
	right := t.alloc(true)
	n, r := &t.nodes[idx], &t.nodes[right]

	var sep Key
	n.keys, n.values, r.keys, r.values, sep = splitLeaf(n.keys, n.values)

	r.parent = n.parent
	r.prev = idx
	r.next = n.next
	if n.next != nilNode {
		t.nodes[n.next].prev = right
	}
	n.next = right

	t.insertSeparator(idx, sep, right)
}

func (t *Tree[V]) splitInner(idx int32) {
	right := t.alloc(false)
	n, r := &t.nodes[idx], &t.nodes[right]

	var median Key
	n.keys, n.children, r.keys, r.children, median = splitInner(n.keys, n.children)

	r.parent = n.parent
	for _, c := range r.children {
		t.nodes[c].parent = right
	}

	t.insertSeparator(idx, median, right)
}

// insertSeparator links right into the parent of left, directly after
// left, growing a new root when left was the root
func (t *Tree[V]) insertSeparator(left int32, sep Key, right int32) {
	parent := t.nodes[left].parent
	if parent == nilNode {
		root := t.alloc(false)
		t.nodes[root].keys = []Key{sep}
		t.nodes[root].children = []int32{left, right}
		t.nodes[left].parent = root
		t.nodes[right].parent = root
		t.root = root
		return
	}

	i := t.indexInParent(parent, left)
	p := &t.nodes[parent]
	p.keys = insertAt(p.keys, i, sep)
	p.children = insertAt(p.children, i+1, right)
	t.nodes[right].parent = parent

	if len(p.children) > t.order {
		t.splitInner(parent)
	}
}

// Delete removes k from the tree and reports whether it was present
func (t *Tree[V]) Delete(k Key) bool {
	leaf := t.findLeaf(k)
	pos, found := searchLeaf(t.nodes[leaf].keys, k)
	if !found {
		return false
	}
	t.deleteAt(leaf, pos)
	return true
}

// deleteAt removes the entry at (leaf, pos) and returns where the entry
// that followed it lives once the tree has been rebalanced
func (t *Tree[V]) deleteAt(leaf int32, pos int) location {
	n := &t.nodes[leaf]
	n.keys = removeAt(n.keys, pos)
	n.values = removeAt(n.values, pos)
	t.size--

	next := location{node: leaf, pos: pos}
	if pos == len(n.keys) {
		next = location{node: n.next, pos: 0}
	}

	if leaf == t.root || len(n.keys) >= t.minLeafKeys() {
		return next
	}
	return t.rebalanceLeaf(leaf, next)
}

// rebalanceLeaf restores the occupancy of an underfull leaf by borrowing
// from or merging with a sibling. loc is translated to follow any entry
// that moves.
func (t *Tree[V]) rebalanceLeaf(idx int32, loc location) location {
	parent := t.nodes[idx].parent
	i := t.indexInParent(parent, idx)
	p := &t.nodes[parent]
	minKeys := t.minLeafKeys()

	if i > 0 {
		left := p.children[i-1]
		if l := &t.nodes[left]; len(l.keys) > minKeys {
			n := &t.nodes[idx]
			l.keys, n.keys = shiftRight(l.keys, n.keys)
			l.values, n.values = shiftRight(l.values, n.values)
			p.keys[i-1] = n.keys[0]
			if loc.node == idx {
				loc.pos++
			}
			return loc
		}
	}

	if i < len(p.children)-1 {
		right := p.children[i+1]
		if r := &t.nodes[right]; len(r.keys) > minKeys {
			n := &t.nodes[idx]
			n.keys, r.keys = shiftLeft(n.keys, r.keys)
			n.values, r.values = shiftLeft(n.values, r.values)
			p.keys[i] = r.keys[0]
			if loc.node == right {
				if loc.pos == 0 {
					loc = location{node: idx, pos: len(n.keys) - 1}
				} else {
					loc.pos--
				}
			}
			return loc
		}
	}

	switch {
	case i > 0:
		left := p.children[i-1]
		l, n := &t.nodes[left], &t.nodes[idx]
		if loc.node == idx {
			loc = location{node: left, pos: len(l.keys) + loc.pos}
		}
		l.keys = concat(l.keys, n.keys)
		l.values = concat(l.values, n.values)
		t.unlinkLeaf(idx)
		p.keys = removeAt(p.keys, i-1)
		p.children = removeAt(p.children, i)
		t.release(idx)
	case i < len(p.children)-1:
		right := p.children[i+1]
		n, r := &t.nodes[idx], &t.nodes[right]
		if loc.node == right {
			loc = location{node: idx, pos: len(n.keys) + loc.pos}
		}
		n.keys = concat(n.keys, r.keys)
		n.values = concat(n.values, r.values)
		t.unlinkLeaf(right)
		p.keys = removeAt(p.keys, i)
		p.children = removeAt(p.children, i+1)
		t.release(right)
	default:
		panic(fmt.Sprintf("ipindex: leaf %d has no siblings", idx))
	}

	t.rebalanceInner(parent)
	return loc
}

func (t *Tree[V]) unlinkLeaf(idx int32) {
	n := &t.nodes[idx]
	if n.prev != nilNode {
		t.nodes[n.prev].next = n.next
	} else {
		t.head = n.next
	}
	if n.next != nilNode {
		t.nodes[n.next].prev = n.prev
	}
}

// rebalanceInner restores the occupancy of an inner node after one of its
// children was merged away, collapsing the root when it is left with a
// single child
func (t *Tree[V]) rebalanceInner(idx int32) {
	n := &t.nodes[idx]
	if idx == t.root {
		if len(n.children) == 1 {
			child := n.children[0]
			t.nodes[child].parent = nilNode
			t.root = child
			t.release(idx)
		}
		return
	}

	minKids := t.minChildren()
	if len(n.children) >= minKids {
		return
	}

	parent := n.parent
	i := t.indexInParent(parent, idx)
	p := &t.nodes[parent]

	if i > 0 {
		left := p.children[i-1]
		if l := &t.nodes[left]; len(l.children) > minKids {
			l.keys, l.children, p.keys[i-1], n.keys, n.children =
				rotateRight(l.keys, l.children, p.keys[i-1], n.keys, n.children)
			t.nodes[n.children[0]].parent = idx
			return
		}
	}

	if i < len(p.children)-1 {
		right := p.children[i+1]
		if r := &t.nodes[right]; len(r.children) > minKids {
			n.keys, n.children, p.keys[i], r.keys, r.children =
				rotateLeft(n.keys, n.children, p.keys[i], r.keys, r.children)
			t.nodes[n.children[len(n.children)-1]].parent = idx
			return
		}
	}

	switch {
	case i > 0:
		left := p.children[i-1]
		l := &t.nodes[left]
		l.keys, l.children = mergeInner(l.keys, l.children, p.keys[i-1], n.keys, n.children)
		for _, c := range n.children {
			t.nodes[c].parent = left
		}
		p.keys = removeAt(p.keys, i-1)
		p.children = removeAt(p.children, i)
		t.release(idx)
	case i < len(p.children)-1:
		right := p.children[i+1]
		r := &t.nodes[right]
		n.keys, n.children = mergeInner(n.keys, n.children, p.keys[i], r.keys, r.children)
		for _, c := range r.children {
			t.nodes[c].parent = idx
		}
		p.keys = removeAt(p.keys, i)
		p.children = removeAt(p.children, i+1)
		t.release(right)
	default:
		panic(fmt.Sprintf("ipindex: inner node %d has no siblings", idx))
	}

	t.rebalanceInner(parent)
}
