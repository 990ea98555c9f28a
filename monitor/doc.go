// Package monitor provides interceptors.MetricsCollector implementations.
//
//   - SimpleMetricsCollector: in-memory counters and a recent sample window per call site
//   - OTelCollector: OpenTelemetry counters and a duration histogram
//   - PrometheusCollector: Prometheus counter and histogram vectors
//
// All collectors are safe for concurrent use.
package monitor
