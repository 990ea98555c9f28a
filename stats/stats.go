package stats

import (
	"errors"
	"math"
	"slices"

	"github.com/glimte/mmate-intercept/contracts"
)

var (
	// ErrEmptySample is returned when a statistic is requested over no samples
	ErrEmptySample = errors.New("stats: empty sample set")

	// ErrRankOutOfRange is returned for a percentile rank outside [0, 1]
	ErrRankOutOfRange = errors.New("stats: rank must be within [0, 1]")
)

// Summary holds the statistics reported per call site. Durations are in milliseconds.
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"avg_ms"`
	Min     float64 `json:"min_ms"`
	Max     float64 `json:"max_ms"`
	StdDev  float64 `json:"stddev_ms"`
	P25     float64 `json:"p25_ms"`
	P50     float64 `json:"p50_ms"`
	P75     float64 `json:"p75_ms"`
	P90     float64 `json:"p90_ms"`
}

// Select projects items onto float64 samples
func Select[T any](items []T, fn func(T) float64) []float64 {
	samples := make([]float64, len(items))
	for i, item := range items {
		samples[i] = fn(item)
	}
	return samples
}

func emptySample(op string) error {
	return contracts.NewArgumentError(op, "samples", ErrEmptySample)
}

// Mean returns the arithmetic mean
func Mean(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, emptySample("stats.Mean")
	}
	return mean(samples), nil
}

// Min returns the smallest sample
func Min(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, emptySample("stats.Min")
	}
	return slices.Min(samples), nil
}

// Max returns the largest sample
func Max(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, emptySample("stats.Max")
	}
	return slices.Max(samples), nil
}

// Variance returns the population variance
func Variance(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, emptySample("stats.Variance")
	}
	return variance(samples, mean(samples)), nil
}

// StdDev returns the population standard deviation
func StdDev(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, emptySample("stats.StdDev")
	}
	return math.Sqrt(variance(samples, mean(samples))), nil
}

// InversePercentile returns the value at rank (0 = min, 1 = max) using linear interpolation
func InversePercentile(samples []float64, rank float64) (float64, error) {
	if len(samples) == 0 {
		return 0, emptySample("stats.InversePercentile")
	}
	if err := checkRank("stats.InversePercentile", rank); err != nil {
		return 0, err
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return percentileSorted(sorted, rank), nil
}

// Summarize computes every Summary field in one pass over a sorted copy
func Summarize(samples []float64) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, emptySample("stats.Summarize")
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	avg := mean(sorted)
	return Summary{
		Count:   len(sorted),
		Average: avg,
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		StdDev:  math.Sqrt(variance(sorted, avg)),
		P25:     percentileSorted(sorted, 0.25),
		P50:     percentileSorted(sorted, 0.50),
		P75:     percentileSorted(sorted, 0.75),
		P90:     percentileSorted(sorted, 0.90),
	}, nil
}

func checkRank(op string, rank float64) error {
	if math.IsNaN(rank) || rank < 0 || rank > 1 {
		return contracts.NewArgumentError(op, "rank", ErrRankOutOfRange)
	}
	return nil
}

func mean(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

func variance(samples []float64, avg float64) float64 {
	var sum float64
	for _, s := range samples {
		d := s - avg
		sum += d * d
	}
	return sum / float64(len(samples))
}

// percentileSorted expects a non-empty ascending slice and a valid rank
func percentileSorted(sorted []float64, rank float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	position := rank * float64(len(sorted)-1)
	lower := int(math.Floor(position))
	upper := int(math.Ceil(position))
	frac := position - float64(lower)

	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
