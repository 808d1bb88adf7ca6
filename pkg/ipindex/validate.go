package ipindex

import "fmt"

// Validate walks the whole tree and returns an error describing the first
// structural invariant that does not hold
func (t *Tree[V]) Validate() error {
	leafDepth := -1
	var leaves []int32
	count, err := t.validateNode(t.root, nilNode, nil, nil, 0, &leafDepth, &leaves)
	if err != nil {
		return err
	}
	if count != t.size {
		return fmt.Errorf("tree holds %d keys but records a size of %d", count, t.size)
	}

	// the leaf list must visit the leaves in the same order as the tree walk
	if len(leaves) == 0 || t.head != leaves[0] {
		return fmt.Errorf("leaf list head %d does not match leftmost leaf", t.head)
	}
	prev := nilNode
	for i, idx := range leaves {
		n := &t.nodes[idx]
		if n.prev != prev {
			return fmt.Errorf("leaf %d links back to %d instead of %d", idx, n.prev, prev)
		}
		want := nilNode
		if i+1 < len(leaves) {
			want = leaves[i+1]
		}
		if n.next != want {
			return fmt.Errorf("leaf %d links forward to %d instead of %d", idx, n.next, want)
		}
		if i > 0 {
			last := t.nodes[prev].keys
			if !last[len(last)-1].Less(n.keys[0]) {
				return fmt.Errorf("leaf %d does not start above the end of leaf %d", idx, prev)
			}
		}
		prev = idx
	}
	return nil
}

func (t *Tree[V]) validateNode(idx, parent int32, lo, hi *Key, depth int, leafDepth *int, leaves *[]int32) (int, error) {
	n := &t.nodes[idx]
	if n.parent != parent {
		return 0, fmt.Errorf("node %d records parent %d instead of %d", idx, n.parent, parent)
	}
	for i := 1; i < len(n.keys); i++ {
		if !n.keys[i-1].Less(n.keys[i]) {
			return 0, fmt.Errorf("node %d keys are not strictly increasing at %d", idx, i)
		}
	}
	for _, k := range n.keys {
		if lo != nil && k.Less(*lo) {
			return 0, fmt.Errorf("node %d holds a key below its lower separator", idx)
		}
		if hi != nil && !k.Less(*hi) {
			return 0, fmt.Errorf("node %d holds a key at or above its upper separator", idx)
		}
	}

	isRoot := idx == t.root
	if n.leaf {
		if len(n.values) != len(n.keys) {
			return 0, fmt.Errorf("leaf %d has %d keys but %d values", idx, len(n.keys), len(n.values))
		}
		if len(n.keys) > t.order-1 {
			return 0, fmt.Errorf("leaf %d holds %d keys, above the maximum of %d", idx, len(n.keys), t.order-1)
		}
		if !isRoot && len(n.keys) < t.minLeafKeys() {
			return 0, fmt.Errorf("leaf %d holds %d keys, below the minimum of %d", idx, len(n.keys), t.minLeafKeys())
		}
		if *leafDepth == -1 {
			*leafDepth = depth
		} else if *leafDepth != depth {
			return 0, fmt.Errorf("leaf %d sits at depth %d while others sit at %d", idx, depth, *leafDepth)
		}
		*leaves = append(*leaves, idx)
		return len(n.keys), nil
	}

	if len(n.children) != len(n.keys)+1 {
		return 0, fmt.Errorf("inner node %d has %d keys and %d children", idx, len(n.keys), len(n.children))
	}
	if len(n.children) > t.order {
		return 0, fmt.Errorf("inner node %d has %d children, above the maximum of %d", idx, len(n.children), t.order)
	}
	if isRoot && len(n.children) < 2 {
		return 0, fmt.Errorf("inner root %d has a single child", idx)
	}
	if !isRoot && len(n.children) < t.minChildren() {
		return 0, fmt.Errorf("inner node %d has %d children, below the minimum of %d", idx, len(n.children), t.minChildren())
	}

	total := 0
	for i, c := range n.children {
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = &n.keys[i-1]
		}
		if i < len(n.keys) {
			childHi = &n.keys[i]
		}
		count, err := t.validateNode(c, idx, childLo, childHi, depth+1, leafDepth, leaves)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}
