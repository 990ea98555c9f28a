package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/glimte/mmate-intercept/contracts"
	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Interceptor names accepted in Chain.Interceptors
const (
	InterceptorTimer   = "timer"
	InterceptorLogging = "logging"
	InterceptorTrace   = "trace"
	InterceptorMetrics = "metrics"
)

// Metrics backends accepted in Metrics.Backend
const (
	MetricsSimple     = "simple"
	MetricsPrometheus = "prometheus"
	MetricsOTel       = "otel"
)

// Config describes an interceptor chain and where its output goes
type Config struct {
	Chain    ChainConfig    `yaml:"chain"`
	Trace    TraceConfig    `yaml:"trace"`
	Timer    TimerConfig    `yaml:"timer"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// ChainConfig lists the interceptors in execution order
type ChainConfig struct {
	Interceptors  []string `yaml:"interceptors" validate:"required,min=1,unique,dive,oneof=timer logging trace metrics"`
	FailurePolicy string   `yaml:"failurePolicy" validate:"omitempty,oneof=swallow propagate rethrow"`
	// Methods restricts the chain to these Owner.Method names. Empty means all.
	Methods []string `yaml:"methods" validate:"dive,required"`
}

// TraceConfig selects the trace streams
type TraceConfig struct {
	Output      string `yaml:"output" validate:"omitempty,oneof=stdout stderr discard"`
	ErrorOutput string `yaml:"errorOutput" validate:"omitempty,oneof=stdout stderr discard"`
}

// TimerConfig configures the timer interceptor
type TimerConfig struct {
	FlushTimeout time.Duration `yaml:"flushTimeout" validate:"gt=0"`
}

// MetricsConfig selects the metrics backend
type MetricsConfig struct {
	Backend   string `yaml:"backend" validate:"omitempty,oneof=simple prometheus otel"`
	Namespace string `yaml:"namespace" validate:"omitempty,alphanum"`
	Window    int    `yaml:"window" validate:"gte=0"`
}

// RabbitMQConfig configures timing report publication
type RabbitMQConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Exchange       string        `yaml:"exchange"`
	ExchangeKind   string        `yaml:"exchangeKind" validate:"omitempty,oneof=direct fanout topic headers"`
	RoutingPrefix  string        `yaml:"routingPrefix"`
	ConfirmTimeout time.Duration `yaml:"confirmTimeout" validate:"gte=0"`
}

// Default returns a chain of timer and logging with swallowed failures
func Default() *Config {
	return &Config{
		Chain: ChainConfig{
			Interceptors:  []string{InterceptorTimer, InterceptorLogging},
			FailurePolicy: "swallow",
		},
		Trace: TraceConfig{
			Output:      "stdout",
			ErrorOutput: "stderr",
		},
		Timer: TimerConfig{
			FlushTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Backend:   MetricsSimple,
			Namespace: "intercept",
		},
		RabbitMQ: RabbitMQConfig{
			Exchange:      "intercept.timing",
			ExchangeKind:  "topic",
			RoutingPrefix: "timing",
		},
	}
}

// Load reads and validates a YAML configuration file. Fields missing from the
// file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of every section
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return contracts.NewArgumentError("config.Validate", "config", fmt.Errorf("validation failed: %w", err))
	}
	return nil
}

// Policy returns the parsed failure policy
func (c *Config) Policy() (interceptors.FailurePolicy, error) {
	return interceptors.ParseFailurePolicy(c.Chain.FailurePolicy)
}

// Has reports whether the chain includes the named interceptor
func (c *Config) Has(name string) bool {
	for _, n := range c.Chain.Interceptors {
		if n == name {
			return true
		}
	}
	return false
}
