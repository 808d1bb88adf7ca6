package ipindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func keys(ids ...int) []Key {
	out := make([]Key, 0, len(ids))
	for _, i := range ids {
		out = append(out, keyOf(i))
	}
	return out
}

func TestShift(t *testing.T) {
	left, right := []int{1, 2, 3}, []int{4, 5}

	l, r := shiftRight(left, right)
	assert.Equal(t, []int{1, 2}, l)
	assert.Equal(t, []int{3, 4, 5}, r)

	l, r = shiftLeft(left, right)
	assert.Equal(t, []int{1, 2, 3, 4}, l)
	assert.Equal(t, []int{5}, r)

	// inputs are untouched
	assert.Equal(t, []int{1, 2, 3}, left)
	assert.Equal(t, []int{4, 5}, right)
}

func TestRotateRight(t *testing.T) {
	lk, lc, sep, k, c := rotateRight(keys(10, 20), []int32{1, 2, 3}, keyOf(30), keys(40), []int32{4, 5})
	assert.Equal(t, keys(10), lk)
	assert.Equal(t, []int32{1, 2}, lc)
	assert.Equal(t, keyOf(20), sep)
	assert.Equal(t, keys(30, 40), k)
	assert.Equal(t, []int32{3, 4, 5}, c)
}

func TestRotateLeft(t *testing.T) {
	k, c, sep, rk, rc := rotateLeft(keys(10), []int32{1, 2}, keyOf(20), keys(30, 40), []int32{3, 4, 5})
	assert.Equal(t, keys(10, 20), k)
	assert.Equal(t, []int32{1, 2, 3}, c)
	assert.Equal(t, keyOf(30), sep)
	assert.Equal(t, keys(40), rk)
	assert.Equal(t, []int32{4, 5}, rc)
}

func TestMergeInner(t *testing.T) {
	k, c := mergeInner(keys(10), []int32{1, 2}, keyOf(20), keys(30), []int32{3, 4})
	assert.Equal(t, keys(10, 20, 30), k)
	assert.Equal(t, []int32{1, 2, 3, 4}, c)
}

func TestSplits(t *testing.T) {
	a, b, c, d := 1, 2, 3, 4
	lk, lv, rk, rv, sep := splitLeaf(keys(1, 2, 3, 4), []*int{&a, &b, &c, &d})
	assert.Equal(t, keys(1, 2), lk)
	assert.Equal(t, []*int{&a, &b}, lv)
	assert.Equal(t, keys(3, 4), rk)
	assert.Equal(t, []*int{&c, &d}, rv)
	assert.Equal(t, keyOf(3), sep)

	// order 4 overflows at 5 children
	ik, ic, jk, jc, median := splitInner(keys(10, 20, 30, 40), []int32{1, 2, 3, 4, 5})
	assert.Equal(t, keys(10, 20), ik)
	assert.Equal(t, []int32{1, 2, 3}, ic)
	assert.Equal(t, keys(40), jk)
	assert.Equal(t, []int32{4, 5}, jc)
	assert.Equal(t, keyOf(30), median)
}
