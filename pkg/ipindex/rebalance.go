package ipindex

// The helpers in this file never modify their arguments. Each returns
// freshly allocated slices so that a rebalancing step can be checked
// without building a tree around it.

// concat joins the given slices into a new slice
func concat[T any](parts ...[]T) []T {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]T, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// insertAt returns s with v inserted at position i
func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// removeAt returns s with the element at position i removed
func removeAt[T any](s []T, i int) []T {
	var zero T
	copy(s[i:], s[i+1:])
	s[len(s)-1] = zero
	return s[:len(s)-1]
}

// shiftRight moves the last element of left onto the front of right
func shiftRight[T any](left, right []T) (newLeft, newRight []T) {
	last := len(left) - 1
	return concat(left[:last]), concat(left[last:], right)
}

// shiftLeft moves the first element of right onto the end of left
func shiftLeft[T any](left, right []T) (newLeft, newRight []T) {
	return concat(left, right[:1]), concat(right[1:])
}

// rotateRight moves the last child of an inner node's left sibling into
// the node. The parent separator comes down as the node's first key and
// the sibling's last key goes up to replace it.
func rotateRight(leftKeys []Key, leftChildren []int32, sep Key, keys []Key, children []int32) (
	newLeftKeys []Key, newLeftChildren []int32, newSep Key, newKeys []Key, newChildren []int32) {
	lastKey := len(leftKeys) - 1
	newSep = leftKeys[lastKey]
	newLeftKeys = concat(leftKeys[:lastKey])
	newKeys = concat([]Key{sep}, keys)
	newLeftChildren, newChildren = shiftRight(leftChildren, children)
	return
}

// rotateLeft moves the first child of an inner node's right sibling into
// the node. The parent separator comes down as the node's last key and
// the sibling's first key goes up to replace it.
func rotateLeft(keys []Key, children []int32, sep Key, rightKeys []Key, rightChildren []int32) (
	newKeys []Key, newChildren []int32, newSep Key, newRightKeys []Key, newRightChildren []int32) {
	newSep = rightKeys[0]
	newRightKeys = concat(rightKeys[1:])
	newKeys = concat(keys, []Key{sep})
	newChildren, newRightChildren = shiftLeft(children, rightChildren)
	return
}

// mergeInner joins two sibling inner nodes around the separator that
// divided them in the parent
func mergeInner(leftKeys []Key, leftChildren []int32, sep Key, rightKeys []Key, rightChildren []int32) ([]Key, []int32) {
	return concat(leftKeys, []Key{sep}, rightKeys), concat(leftChildren, rightChildren)
}

// splitLeaf divides an overfull leaf. The left half keeps floor(n/2)
// entries and the first key of the right half becomes the separator.
func splitLeaf[V any](keys []Key, values []*V) (leftKeys []Key, leftValues []*V, rightKeys []Key, rightValues []*V, sep Key) {
	mid := len(keys) / 2
	return concat(keys[:mid]), concat(values[:mid]), concat(keys[mid:]), concat(values[mid:]), keys[mid]
}

// splitInner divides an overfull inner node. The left half keeps
// ceil(children/2) children and the median key moves up to the parent.
func splitInner(keys []Key, children []int32) (leftKeys []Key, leftChildren []int32, rightKeys []Key, rightChildren []int32, median Key) {
	mid := (len(children) + 1) / 2
	return concat(keys[:mid-1]), concat(children[:mid]), concat(keys[mid:]), concat(children[mid:]), keys[mid-1]
}
