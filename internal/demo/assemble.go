package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/glimte/mmate-intercept/config"
	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/glimte/mmate-intercept/monitor"
	"github.com/glimte/mmate-intercept/transports/rabbitmq"
	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Publisher is a timing reporter owning a connection
type Publisher interface {
	interceptors.TimingReporter
	io.Closer
}

// Dialer opens a report publisher
type Dialer func(url string, opts ...rabbitmq.PublisherOption) (Publisher, error)

// DialRabbitMQ is the default Dialer
func DialRabbitMQ(url string, opts ...rabbitmq.PublisherOption) (Publisher, error) {
	return rabbitmq.Dial(url, opts...)
}

// Streams are the writers used by the trace interceptor
type Streams struct {
	Out    io.Writer
	ErrOut io.Writer
}

func (s Streams) pick(name string) io.Writer {
	switch name {
	case "stderr":
		return s.ErrOut
	case "discard":
		return io.Discard
	default:
		return s.Out
	}
}

// Assembly is an interceptor chain built from configuration together with
// the components the caller flushes or inspects afterwards
type Assembly struct {
	Chain     *interceptors.InterceptorChain
	Registry  *interceptors.Registry
	Timer     *interceptors.TimerInterceptor
	Collector interceptors.MetricsCollector

	promRegistry *prometheus.Registry
	otelReader   *sdkmetric.ManualReader
	otelProvider *sdkmetric.MeterProvider
	publisher    Publisher
}

// Assemble builds the chain described by cfg. The configured interceptors are
// registered in the configured order and Chain runs all of them. Registry
// stays available for chains over a subset; method-restricted interceptors
// are wrapped after registration order is fixed and are still selected by
// the type they wrap.
func Assemble(cfg *config.Config, logger *slog.Logger, streams Streams, dial Dialer) (*Assembly, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dial == nil {
		dial = DialRabbitMQ
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	opts := []interceptors.Option{interceptors.WithFailurePolicy(policy)}

	a := &Assembly{}

	if cfg.Has(config.InterceptorTimer) {
		reporters := []interceptors.TimingReporter{interceptors.NewLogReporter(logger)}
		if cfg.RabbitMQ.Enabled {
			if a.publisher, err = dial(cfg.RabbitMQ.URL, publisherOptions(cfg.RabbitMQ, logger)...); err != nil {
				return nil, fmt.Errorf("failed to open report publisher: %w", err)
			}
			reporters = append(reporters, a.publisher)
		}
		a.Timer = interceptors.NewTimerInterceptor(logger, append(opts, interceptors.WithReporters(reporters...))...)
	}

	if cfg.Has(config.InterceptorMetrics) {
		if err := a.buildCollector(cfg.Metrics); err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
	}

	a.Registry = interceptors.NewRegistry()
	for _, name := range cfg.Chain.Interceptors {
		var interceptor interceptors.Interceptor
		switch name {
		case config.InterceptorTimer:
			interceptor = a.Timer
		case config.InterceptorLogging:
			interceptor = interceptors.NewLoggingInterceptor(logger, opts...)
		case config.InterceptorTrace:
			interceptor = interceptors.NewTraceInterceptor(streams.pick(cfg.Trace.Output), streams.pick(cfg.Trace.ErrorOutput), opts...)
		case config.InterceptorMetrics:
			interceptor = interceptors.NewMetricsInterceptor(a.Collector)
		}

		if len(cfg.Chain.Methods) > 0 {
			interceptor = interceptors.NewConditionalInterceptor(interceptors.NewMethodNameFilter(cfg.Chain.Methods...), interceptor)
		}
		if err := a.Registry.Register(interceptor); err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
	}

	a.Chain = a.Registry.Chain(logger)
	return a, nil
}

func publisherOptions(cfg config.RabbitMQConfig, logger *slog.Logger) []rabbitmq.PublisherOption {
	opts := []rabbitmq.PublisherOption{
		rabbitmq.WithRoutingPrefix(cfg.RoutingPrefix),
		rabbitmq.WithPublisherLogger(logger),
	}
	if cfg.Exchange != "" {
		kind := cfg.ExchangeKind
		if kind == "" {
			kind = "topic"
		}
		opts = append(opts, rabbitmq.WithExchange(cfg.Exchange, kind))
	}
	if cfg.ConfirmTimeout > 0 {
		opts = append(opts, rabbitmq.WithConfirms(cfg.ConfirmTimeout))
	}
	return opts
}

func (a *Assembly) buildCollector(cfg config.MetricsConfig) error {
	switch cfg.Backend {
	case config.MetricsPrometheus:
		a.promRegistry = prometheus.NewRegistry()
		collector, err := monitor.NewPrometheusCollector(cfg.Namespace, a.promRegistry)
		if err != nil {
			return err
		}
		a.Collector = collector
	case config.MetricsOTel:
		a.otelReader = sdkmetric.NewManualReader()
		a.otelProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(a.otelReader))
		collector, err := monitor.NewOTelCollector(a.otelProvider.Meter("github.com/glimte/mmate-intercept"))
		if err != nil {
			return err
		}
		a.Collector = collector
	default:
		a.Collector = monitor.NewSimpleMetricsCollector(cfg.Window)
	}
	return nil
}

// Flush flushes the timer, if any, and returns its reports
func (a *Assembly) Flush(ctx context.Context) ([]interceptors.TimingReport, error) {
	if a.Timer == nil {
		return nil, nil
	}
	return a.Timer.Flush(ctx)
}

// FlushWithin flushes with its own deadline, independent of the context the
// workload ran under
func (a *Assembly) FlushWithin(timeout time.Duration) ([]interceptors.TimingReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.Flush(ctx)
}

// WriteMetrics writes the collected metrics as JSON
func (a *Assembly) WriteMetrics(ctx context.Context, w io.Writer) error {
	var snapshot any

	switch {
	case a.Collector == nil:
		return nil
	case a.promRegistry != nil:
		families, err := a.promRegistry.Gather()
		if err != nil {
			return fmt.Errorf("failed to gather prometheus metrics: %w", err)
		}
		snapshot = families
	case a.otelReader != nil:
		var rm metricdata.ResourceMetrics
		if err := a.otelReader.Collect(ctx, &rm); err != nil {
			return fmt.Errorf("failed to collect otel metrics: %w", err)
		}
		snapshot = otelSnapshot(rm)
	default:
		if simple, ok := a.Collector.(*monitor.SimpleMetricsCollector); ok {
			snapshot = struct {
				Summary monitor.MetricsSummary `json:"summary"`
				Errors  monitor.ErrorAnalysis  `json:"errors"`
			}{simple.GetMetricsSummary(), simple.GetErrorAnalysis()}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

// otelSnapshot totals sums and histogram counts per instrument
func otelSnapshot(rm metricdata.ResourceMetrics) map[string]float64 {
	out := make(map[string]float64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += float64(dp.Value)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name+"_count"] += float64(dp.Count)
					out[m.Name+"_sum"] += dp.Sum
				}
			}
		}
	}
	return out
}

// Close releases the publisher and the meter provider
func (a *Assembly) Close(ctx context.Context) error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.otelProvider != nil {
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
