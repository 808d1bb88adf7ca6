package stats

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectMatchesSort(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, n := range []int{1, 2, 3, 15, 16, 100} {
		values := make([]uint64, n)
		for i := range values {
			// repeated values exercise the equal to pivot path
			values[i] = uint64(rng.Intn(20))
		}
		sorted := append([]uint64(nil), values...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		for k := 0; k < n; k++ {
			scratch := append([]uint64(nil), values...)
			assert.Equal(t, sorted[k], Select(scratch, k), "n=%d k=%d", n, k)
		}
	}
}

func TestMedian(t *testing.T) {
	values := []uint64{9, 1, 5, 3, 7}
	assert.Equal(t, uint64(5), Median(values))
	assert.Equal(t, []uint64{9, 1, 5, 3, 7}, values, "input is not reordered")
	assert.Equal(t, uint64(3), Median([]uint64{4, 1, 3, 2}))
	assert.Equal(t, uint64(0), Median(nil))
}
