package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestOTelCollector(t *testing.T) {
	t.Run("records calls, durations and errors", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = provider.Shutdown(context.Background()) }()

		collector, err := NewOTelCollector(provider.Meter("github.com/glimte/mmate-intercept/monitor"))
		require.NoError(t, err)

		collector.IncrementCallCount(divideKey)
		collector.IncrementCallCount(divideKey)
		collector.RecordCallDuration(divideKey, 20*time.Millisecond)
		collector.RecordCallDuration(divideKey, 40*time.Millisecond)
		collector.IncrementErrorCount(divideKey, interceptors.ErrorTypeInvocation)

		metrics := collectMetrics(t, reader)

		calls, ok := metrics[OTelCallsTotal].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, calls.DataPoints, 1)
		assert.Equal(t, int64(2), calls.DataPoints[0].Value)
		owner, _ := calls.DataPoints[0].Attributes.Value(attribute.Key("owner"))
		method, _ := calls.DataPoints[0].Attributes.Value(attribute.Key("method"))
		assert.Equal(t, "Calculator", owner.AsString())
		assert.Equal(t, "Divide", method.AsString())

		duration, ok := metrics[OTelCallDuration].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, duration.DataPoints, 1)
		assert.Equal(t, uint64(2), duration.DataPoints[0].Count)
		assert.InDelta(t, 0.06, duration.DataPoints[0].Sum, 1e-9)

		errs, ok := metrics[OTelCallErrorsTotal].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, errs.DataPoints, 1)
		assert.Equal(t, int64(1), errs.DataPoints[0].Value)
		errorType, _ := errs.DataPoints[0].Attributes.Value(attribute.Key("error_type"))
		assert.Equal(t, interceptors.ErrorTypeInvocation, errorType.AsString())
	})

	t.Run("separates call sites", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = provider.Shutdown(context.Background()) }()

		collector, err := NewOTelCollector(provider.Meter("test"))
		require.NoError(t, err)

		collector.IncrementCallCount(divideKey)
		collector.IncrementCallCount(addKey)

		calls, ok := collectMetrics(t, reader)[OTelCallsTotal].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		assert.Len(t, calls.DataPoints, 2)
	})
}
