package analysis

import (
	"math"
	"sort"
)

// NeutralFearGreed is returned when there is nothing to aggregate
const NeutralFearGreed = 50.0

// FearGreedIndex maps each score s in [-1, 1] to (s+1)*50 and returns the
// mean. Scores are summed in sorted order so the result does not depend on
// input order.
func FearGreedIndex(scores []float64) float64 {
	if len(scores) == 0 {
		return NeutralFearGreed
	}

	normalized := make([]float64, len(scores))
	for i, s := range scores {
		normalized[i] = (clampScore(s) + 1) * 50
	}
	sort.Float64s(normalized)

	var sum float64
	for _, v := range normalized {
		sum += v
	}

	return sum / float64(len(normalized))
}

// Volatility returns the population standard deviation of scores
func Volatility(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	mean := sum / float64(len(sorted))

	var variance float64
	for _, s := range sorted {
		variance += (s - mean) * (s - mean)
	}

	return math.Sqrt(variance / float64(len(sorted)))
}

func clampScore(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	if s < -1.0 {
		return -1.0
	}
	return s
}
