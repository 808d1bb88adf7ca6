package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndVariance(t *testing.T) {
	var r Running
	for _, x := range []float64{70, 70, 70} {
		r.Observe(x)
	}
	assert.Equal(t, 70.0, r.Mean())
	assert.Equal(t, 0.0, r.Variance())

	r.Clear()
	for _, x := range []float64{1, 2, 3} {
		r.Observe(x)
	}
	assert.Equal(t, uint64(3), r.N())
	assert.Equal(t, 2.0, r.Mean())
	assert.Equal(t, 1.0, r.Variance())
}

func TestEmptyAndSingle(t *testing.T) {
	var r Running
	assert.Equal(t, 0.0, r.Mean())
	assert.Equal(t, 0.0, r.Variance())
	r.Observe(5)
	assert.Equal(t, 5.0, r.Mean())
	assert.Equal(t, 0.0, r.Variance())
}

func TestOrderIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	samples := make([]float64, 1000)
	for i := range samples {
		samples[i] = rng.Float64() * 1500
	}

	var forward, shuffled Running
	for _, x := range samples {
		forward.Observe(x)
	}
	for _, i := range rng.Perm(len(samples)) {
		shuffled.Observe(samples[i])
	}

	assert.InDelta(t, forward.Mean(), shuffled.Mean(), 1e-9)
	assert.InEpsilon(t, forward.Variance(), shuffled.Variance(), 1e-9)
}
