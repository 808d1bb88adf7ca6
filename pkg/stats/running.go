// Package stats holds incremental accumulators over flow size samples
package stats

// Running accumulates the count, sum and sum of squares of a sample so
// that its mean and variance are available at any point
type Running struct {
	n     uint64
	sum   float64
	sumSq float64
}

// Observe adds one sample
func (r *Running) Observe(x float64) {
	r.sum += x
	r.sumSq += x * x
	r.n++
}

// N returns the number of samples observed
func (r *Running) N() uint64 {
	return r.n
}

// Mean returns the sample mean, or 0 when nothing was observed
func (r *Running) Mean() float64 {
	if r.n == 0 {
		return 0
	}
	return r.sum / float64(r.n)
}

// Variance returns the unbiased sample variance. It is only meaningful
// once two or more samples were observed and returns 0 before that.
func (r *Running) Variance() float64 {
	if r.n < 2 {
		return 0
	}
	mean := r.Mean()
	return (r.sumSq - mean*mean*float64(r.n)) / float64(r.n-1)
}

// Clear forgets every sample
func (r *Running) Clear() {
	*r = Running{}
}
