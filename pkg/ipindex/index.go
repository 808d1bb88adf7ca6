package ipindex

import "net/netip"

// Index keeps IPv4 and IPv6 addresses in two independent trees
type Index[V any] struct {
	v4 *Tree[V]
	v6 *Tree[V]
}

// NewIndex creates an empty index whose trees have the given order
func NewIndex[V any](order int) *Index[V] {
	return &Index[V]{
		v4: New[V](order),
		v6: New[V](order),
	}
}

func (x *Index[V]) tree(addr netip.Addr) (*Tree[V], Key) {
	addr = addr.Unmap()
	if addr.Is4() {
		return x.v4, KeyFromAddr(addr)
	}
	return x.v6, KeyFromAddr(addr)
}

// FindOrInsert returns the value for addr, creating it if needed. The
// boolean reports whether it already existed.
func (x *Index[V]) FindOrInsert(addr netip.Addr) (*V, bool) {
	t, k := x.tree(addr)
	return t.FindOrInsert(k)
}

// Get returns the value for addr
func (x *Index[V]) Get(addr netip.Addr) (*V, bool) {
	t, k := x.tree(addr)
	return t.Get(k)
}

// Delete removes addr and reports whether it was present
func (x *Index[V]) Delete(addr netip.Addr) bool {
	t, k := x.tree(addr)
	return t.Delete(k)
}

// Len returns the number of addresses held across both families
func (x *Index[V]) Len() int {
	return x.v4.Len() + x.v6.Len()
}

// Range calls fn for every entry in address order, IPv4 first, until fn
// returns false
func (x *Index[V]) Range(fn func(netip.Addr, *V) bool) {
	for _, t := range []*Tree[V]{x.v4, x.v6} {
		v4 := t == x.v4
		for c := t.First(); c.Valid(); c.Advance() {
			if !fn(c.Key().Addr(v4), c.Value()) {
				return
			}
		}
	}
}

// Sweep calls fn for every entry in address order, IPv4 first, and
// deletes the entries for which fn returns true. Each entry present when
// the sweep starts is visited exactly once. Sweep returns the number of
// deleted entries.
func (x *Index[V]) Sweep(fn func(netip.Addr, *V) bool) int {
	deleted := 0
	for _, t := range []*Tree[V]{x.v4, x.v6} {
		v4 := t == x.v4
		c := t.First()
		for c.Valid() {
			if fn(c.Key().Addr(v4), c.Value()) {
				c.DeleteAndAdvance()
				deleted++
			} else {
				c.Advance()
			}
		}
	}
	return deleted
}
