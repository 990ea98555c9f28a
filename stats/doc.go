// Package stats provides the summary statistics used for call timing reports.
//
// All functions operate on float64 samples and never modify their input.
// An empty sample set is an ArgumentError (ErrEmptySample), never a sentinel
// value such as zero or NaN.
//
// Standard deviation and variance use the population formula: the sum of
// squared deviations from Mean is divided by n, not n-1. A single sample
// therefore has a standard deviation of 0.
//
// Percentiles are inverse percentiles with linear interpolation between the
// two closest ranks of the sorted samples:
//
//	position := rank * float64(n-1)
//	value := s[floor(position)] + (position-floor(position))*(s[ceil(position)]-s[floor(position)])
package stats
