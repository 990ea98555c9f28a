package monitor

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/glimte/mmate-intercept/contracts"
	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/glimte/mmate-intercept/stats"
)

// DefaultSampleWindow is the number of recent durations kept per call site
const DefaultSampleWindow = 100

// SimpleMetricsCollector implements a basic in-memory metrics collector
type SimpleMetricsCollector struct {
	mu     sync.RWMutex
	window int

	callCounters  map[contracts.InvocationKey]int64
	errorCounters map[contracts.InvocationKey]map[string]int64
	durations     map[contracts.InvocationKey]*durationWindow
}

// durationWindow keeps totals plus the most recent samples for percentiles
type durationWindow struct {
	count   int64
	totalMs float64
	minMs   float64
	maxMs   float64
	samples []float64
}

// NewSimpleMetricsCollector creates a new in-memory metrics collector keeping
// the last window durations per call site. A non-positive window uses
// DefaultSampleWindow.
func NewSimpleMetricsCollector(window int) *SimpleMetricsCollector {
	if window <= 0 {
		window = DefaultSampleWindow
	}
	return &SimpleMetricsCollector{
		window:        window,
		callCounters:  make(map[contracts.InvocationKey]int64),
		errorCounters: make(map[contracts.InvocationKey]map[string]int64),
		durations:     make(map[contracts.InvocationKey]*durationWindow),
	}
}

// IncrementCallCount implements interceptors.MetricsCollector
func (c *SimpleMetricsCollector) IncrementCallCount(key contracts.InvocationKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callCounters[key]++
}

// RecordCallDuration implements interceptors.MetricsCollector
func (c *SimpleMetricsCollector) RecordCallDuration(key contracts.InvocationKey, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := float64(duration) / float64(time.Millisecond)

	w, exists := c.durations[key]
	if !exists {
		w = &durationWindow{minMs: ms, maxMs: ms, samples: make([]float64, 0, c.window)}
		c.durations[key] = w
	}

	w.count++
	w.totalMs += ms
	w.minMs = min(w.minMs, ms)
	w.maxMs = max(w.maxMs, ms)

	if len(w.samples) >= c.window {
		w.samples = w.samples[1:]
	}
	w.samples = append(w.samples, ms)
}

// IncrementErrorCount implements interceptors.MetricsCollector
func (c *SimpleMetricsCollector) IncrementErrorCount(key contracts.InvocationKey, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorCounters[key] == nil {
		c.errorCounters[key] = make(map[string]int64)
	}
	c.errorCounters[key][errorType]++
}

// MetricsSummary represents a snapshot of all metrics, keyed by Owner.Method
type MetricsSummary struct {
	CallCounts  map[string]int64            `json:"call_counts"`
	ErrorCounts map[string]map[string]int64 `json:"error_counts"`
	Durations   map[string]DurationStats    `json:"durations"`
}

// DurationStats holds lifetime count, mean, min and max plus percentiles over
// the recent sample window
type DurationStats struct {
	Count  int64   `json:"count"`
	AvgMs  float64 `json:"avg_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P75Ms  float64 `json:"p75_ms"`
	P90Ms  float64 `json:"p90_ms"`
	Window int     `json:"window"`
}

// GetMetricsSummary returns a summary of all collected metrics
func (c *SimpleMetricsCollector) GetMetricsSummary() MetricsSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := MetricsSummary{
		CallCounts:  make(map[string]int64, len(c.callCounters)),
		ErrorCounts: make(map[string]map[string]int64, len(c.errorCounters)),
		Durations:   make(map[string]DurationStats, len(c.durations)),
	}

	for key, count := range c.callCounters {
		summary.CallCounts[key.String()] += count
	}

	for key, errs := range c.errorCounters {
		name := key.String()
		if summary.ErrorCounts[name] == nil {
			summary.ErrorCounts[name] = make(map[string]int64, len(errs))
		}
		for errorType, count := range errs {
			summary.ErrorCounts[name][errorType] += count
		}
	}

	for key, w := range c.durations {
		ds := DurationStats{
			Count:  w.count,
			AvgMs:  w.totalMs / float64(w.count),
			MinMs:  w.minMs,
			MaxMs:  w.maxMs,
			Window: len(w.samples),
		}

		// samples is never empty once a window exists
		if s, err := stats.Summarize(w.samples); err == nil {
			ds.P50Ms = s.P50
			ds.P75Ms = s.P75
			ds.P90Ms = s.P90
		}

		summary.Durations[key.String()] = ds
	}

	return summary
}

// ErrorAnalysis provides error totals across all call sites
type ErrorAnalysis struct {
	TotalCalls    int64            `json:"total_calls"`
	TotalErrors   int64            `json:"total_errors"`
	ErrorRate     float64          `json:"error_rate"`
	TopErrorTypes []ErrorTypeStats `json:"top_error_types"`
}

// ErrorTypeStats represents statistics for a specific error type
type ErrorTypeStats struct {
	ErrorType string  `json:"error_type"`
	Count     int64   `json:"count"`
	Rate      float64 `json:"rate"`
}

// GetErrorAnalysis totals errors per error type, most frequent first
func (c *SimpleMetricsCollector) GetErrorAnalysis() ErrorAnalysis {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var analysis ErrorAnalysis
	for _, count := range c.callCounters {
		analysis.TotalCalls += count
	}

	byType := make(map[string]int64)
	for _, errs := range c.errorCounters {
		for errorType, count := range errs {
			byType[errorType] += count
			analysis.TotalErrors += count
		}
	}

	if analysis.TotalCalls > 0 {
		analysis.ErrorRate = float64(analysis.TotalErrors) / float64(analysis.TotalCalls)
	}

	for errorType, count := range byType {
		analysis.TopErrorTypes = append(analysis.TopErrorTypes, ErrorTypeStats{
			ErrorType: errorType,
			Count:     count,
			Rate:      float64(count) / float64(analysis.TotalErrors),
		})
	}
	slices.SortFunc(analysis.TopErrorTypes, func(a, b ErrorTypeStats) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ErrorType, b.ErrorType)
	})

	return analysis
}

// Reset clears all collected metrics
func (c *SimpleMetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.callCounters = make(map[contracts.InvocationKey]int64)
	c.errorCounters = make(map[contracts.InvocationKey]map[string]int64)
	c.durations = make(map[contracts.InvocationKey]*durationWindow)
}

var _ interceptors.MetricsCollector = (*SimpleMetricsCollector)(nil)
