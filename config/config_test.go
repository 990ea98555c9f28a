package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glimte/mmate-intercept/contracts"
	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{InterceptorTimer, InterceptorLogging}, cfg.Chain.Interceptors)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, interceptors.SwallowFailures, policy)
	assert.False(t, cfg.RabbitMQ.Enabled)
}

func TestLoad(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		cfg, err := Load(filepath.Join("testdata", "full.yaml"))
		require.NoError(t, err)

		assert.Equal(t, []string{"timer", "logging", "trace", "metrics"}, cfg.Chain.Interceptors)
		assert.Equal(t, []string{"Calculator.Divide"}, cfg.Chain.Methods)
		assert.Equal(t, "stdout", cfg.Trace.ErrorOutput)
		assert.Equal(t, 2*time.Second, cfg.Timer.FlushTimeout)
		assert.Equal(t, MetricsPrometheus, cfg.Metrics.Backend)
		assert.Equal(t, "calculator", cfg.Metrics.Namespace)
		assert.Equal(t, 50, cfg.Metrics.Window)
		assert.True(t, cfg.RabbitMQ.Enabled)
		assert.Equal(t, "calculator.timing", cfg.RabbitMQ.Exchange)
		assert.Equal(t, "fanout", cfg.RabbitMQ.ExchangeKind)
		assert.Empty(t, cfg.RabbitMQ.RoutingPrefix)
		assert.Equal(t, 3*time.Second, cfg.RabbitMQ.ConfirmTimeout)

		policy, err := cfg.Policy()
		require.NoError(t, err)
		assert.Equal(t, interceptors.PropagateFailures, policy)
		assert.True(t, cfg.Has(InterceptorTrace))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParse(t *testing.T) {
	t.Run("empty document keeps defaults", func(t *testing.T) {
		cfg, err := Parse(nil)
		require.NoError(t, err)

		assert.Equal(t, Default(), cfg)
	})

	t.Run("partial document keeps other defaults", func(t *testing.T) {
		cfg, err := Parse([]byte("chain:\n  interceptors: [trace]\n"))
		require.NoError(t, err)

		assert.Equal(t, []string{InterceptorTrace}, cfg.Chain.Interceptors)
		assert.Equal(t, "swallow", cfg.Chain.FailurePolicy)
		assert.Equal(t, 5*time.Second, cfg.Timer.FlushTimeout)
		assert.False(t, cfg.Has(InterceptorTimer))
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		_, err := Parse([]byte("chain:\n  interceptor: [trace]\n"))
		assert.ErrorContains(t, err, "failed to parse YAML")
	})

	invalid := []struct {
		name string
		yaml string
	}{
		{"unknown interceptor", "chain:\n  interceptors: [timer, retry]\n"},
		{"duplicate interceptor", "chain:\n  interceptors: [timer, timer]\n"},
		{"empty chain", "chain:\n  interceptors: []\n"},
		{"unknown policy", "chain:\n  failurePolicy: ignore\n"},
		{"empty method", "chain:\n  methods: [\"\"]\n"},
		{"unknown trace output", "trace:\n  output: printer\n"},
		{"negative flush timeout", "timer:\n  flushTimeout: -1s\n"},
		{"zero flush timeout", "timer:\n  flushTimeout: 0s\n"},
		{"unknown metrics backend", "metrics:\n  backend: statsd\n"},
		{"rabbitmq without url", "rabbitmq:\n  enabled: true\n"},
		{"rabbitmq bad exchange kind", "rabbitmq:\n  exchangeKind: x-delayed\n"},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))

			require.Error(t, err)
			assert.True(t, contracts.IsArgumentError(err))
		})
	}
}
