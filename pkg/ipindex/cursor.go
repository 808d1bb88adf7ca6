package ipindex

// Cursor walks a Tree in key order along the leaf list. The tree must not
// be modified while a cursor is in use except through DeleteAndAdvance.
type Cursor[V any] struct {
	tree *Tree[V]
	loc  location
}

// First returns a cursor positioned at the smallest key
func (t *Tree[V]) First() *Cursor[V] {
	return &Cursor[V]{tree: t, loc: location{node: t.head, pos: 0}}
}

// Valid reports whether the cursor points at an entry
func (c *Cursor[V]) Valid() bool {
	return c.loc.node != nilNode && c.loc.pos < len(c.tree.nodes[c.loc.node].keys)
}

// Key returns the key under the cursor
func (c *Cursor[V]) Key() Key {
	return c.tree.nodes[c.loc.node].keys[c.loc.pos]
}

// Value returns the value under the cursor
func (c *Cursor[V]) Value() *V {
	return c.tree.nodes[c.loc.node].values[c.loc.pos]
}

// Advance moves to the next key and reports whether one exists
func (c *Cursor[V]) Advance() bool {
	if !c.Valid() {
		return false
	}
	n := &c.tree.nodes[c.loc.node]
	c.loc.pos++
	if c.loc.pos >= len(n.keys) {
		c.loc = location{node: n.next, pos: 0}
	}
	return c.Valid()
}

// DeleteAndAdvance removes the entry under the cursor, rebalancing the
// tree as Delete does, and moves to the entry that followed it. It
// reports whether such an entry exists.
func (c *Cursor[V]) DeleteAndAdvance() bool {
	if !c.Valid() {
		return false
	}
	c.loc = c.tree.deleteAt(c.loc.node, c.loc.pos)
	return c.Valid()
}
