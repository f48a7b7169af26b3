// Package metrics computes summary statistics of applied adjustment factors.
package metrics

import (
	"math"

	"tick-adjust-lab/internal/domain"
)

// SummarizeFactors computes min, max, mean, sample stddev and the last value.
// Values must be in tick order. An empty input reports a latest factor of 1.0.
func SummarizeFactors(values []float64) domain.FactorStats {
	n := len(values)
	if n == 0 {
		return domain.FactorStats{Latest: 1.0}
	}

	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	mean := computeMean(values)
	return domain.FactorStats{
		Min:    minV,
		Max:    maxV,
		Mean:   mean,
		Std:    computeStddev(values, mean),
		Latest: values[n-1],
	}
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
