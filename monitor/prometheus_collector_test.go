package monitor

import (
	"testing"
	"time"

	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	t.Run("records calls, durations and errors", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		collector, err := NewPrometheusCollector("intercept", reg)
		require.NoError(t, err)

		collector.IncrementCallCount(divideKey)
		collector.IncrementCallCount(divideKey)
		collector.IncrementCallCount(addKey)
		collector.RecordCallDuration(divideKey, 30*time.Millisecond)
		collector.IncrementErrorCount(divideKey, interceptors.ErrorTypePanic)

		assert.Equal(t, 2.0, testutil.ToFloat64(collector.calls.WithLabelValues("Calculator", "Divide")))
		assert.Equal(t, 1.0, testutil.ToFloat64(collector.calls.WithLabelValues("Calculator", "Add")))
		assert.Equal(t, 1.0, testutil.ToFloat64(collector.errors.WithLabelValues("Calculator", "Divide", interceptors.ErrorTypePanic)))
		assert.Equal(t, 1, testutil.CollectAndCount(collector.duration, "intercept_call_duration_seconds"))
	})

	t.Run("registers every collector", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		collector, err := NewPrometheusCollector("intercept", reg)
		require.NoError(t, err)

		collector.IncrementCallCount(divideKey)
		collector.RecordCallDuration(divideKey, time.Millisecond)
		collector.IncrementErrorCount(divideKey, interceptors.ErrorTypeInvocation)

		families, err := reg.Gather()
		require.NoError(t, err)

		var names []string
		for _, f := range families {
			names = append(names, f.GetName())
		}
		assert.ElementsMatch(t, []string{
			"intercept_calls_total",
			"intercept_call_duration_seconds",
			"intercept_call_errors_total",
		}, names)
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		_, err := NewPrometheusCollector("intercept", reg)
		require.NoError(t, err)

		_, err = NewPrometheusCollector("intercept", reg)
		assert.Error(t, err)
	})
}
