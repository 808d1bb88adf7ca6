package stats

// Select returns the k-th smallest value (0 based) of values without
// sorting them. values is reordered in place.
func Select(values []uint64, k int) uint64 {
	lo, hi := 0, len(values)-1
	for lo < hi {
		p := partition(values, lo, hi)
		switch {
		case k == p:
			return values[k]
		case k < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
	return values[lo]
}

// partition places a pivot at its sorted position within values[lo:hi+1]
// and returns that position. The middle element is used as the pivot so
// already ordered input stays linear on average.
func partition(values []uint64, lo, hi int) int {
	mid := lo + (hi-lo)/2
	values[mid], values[hi] = values[hi], values[mid]
	pivot := values[hi]
	store := lo
	for i := lo; i < hi; i++ {
		if values[i] < pivot {
			values[i], values[store] = values[store], values[i]
			store++
		}
	}
	values[store], values[hi] = values[hi], values[store]
	return store
}

// Median returns the middle value of values, the upper one for an even
// count. values is left untouched. It returns 0 for no values.
func Median(values []uint64) uint64 {
	if len(values) == 0 {
		return 0
	}
	scratch := append([]uint64(nil), values...)
	return Select(scratch, len(scratch)/2)
}
