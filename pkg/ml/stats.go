package ml

import "math"

// RunningStats tracks mean and variance incrementally using Welford's
// algorithm, which stays numerically stable over long streams.
type RunningStats struct {
	N    int
	Mean float64
	M2   float64
}

// Add folds one observation into the statistics
func (s *RunningStats) Add(x float64) {
	s.N++
	delta := x - s.Mean
	s.Mean += delta / float64(s.N)
	s.M2 += delta * (x - s.Mean)
}

// Variance returns the sample variance (0 with fewer than 2 observations)
func (s *RunningStats) Variance() float64 {
	if s.N < 2 {
		return 0
	}
	return s.M2 / float64(s.N-1)
}

// Std returns the sample standard deviation
func (s *RunningStats) Std() float64 {
	return math.Sqrt(s.Variance())
}

// scale returns the standard deviation used for z-scoring; a degenerate
// distribution scales by 1 so the normalized value is just the offset.
func (s *RunningStats) scale() float64 {
	std := s.Std()
	if std < 1e-9 || math.IsNaN(std) {
		return 1
	}
	return std
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
