package interceptors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glimte/mmate-intercept/contracts"
	"github.com/glimte/mmate-intercept/stats"
)

// ErrTimerClosed is returned when a timer interceptor is flushed twice
var ErrTimerClosed = errors.New("timer interceptor: already flushed")

// TimingReport summarizes the recorded calls of one call site
type TimingReport struct {
	Key         contracts.InvocationKey `json:"key"`
	Summary     stats.Summary           `json:"summary"`
	Failures    int                     `json:"failures"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// TimingReporter receives the reports produced when a timer interceptor is flushed
type TimingReporter interface {
	Report(ctx context.Context, reports []TimingReport) error
}

// TimingReporterFunc is a function adapter for TimingReporter
type TimingReporterFunc func(ctx context.Context, reports []TimingReport) error

// Report implements TimingReporter
func (f TimingReporterFunc) Report(ctx context.Context, reports []TimingReport) error {
	return f(ctx, reports)
}

// LogReporter writes one log entry per report
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a new log reporter
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

// Report implements TimingReporter
func (r *LogReporter) Report(ctx context.Context, reports []TimingReport) error {
	for _, report := range reports {
		s := report.Summary
		r.logger.InfoContext(ctx, "timing report",
			"type", report.Key.Owner,
			"method", report.Key.Method,
			"count", s.Count,
			"failures", report.Failures,
			"averageMs", s.Average,
			"maxMs", s.Max,
			"minMs", s.Min,
			"p25Ms", s.P25,
			"p50Ms", s.P50,
			"p75Ms", s.P75,
			"p90Ms", s.P90,
			"stddevMs", s.StdDev,
		)
	}
	return nil
}

// TimerInterceptor records the begin and end time of every call that passes
// through it and summarizes them per call site when flushed.
//
// One instance may serve concurrent calls. Flush stops recording, waits for
// in-flight calls and then reports once; calls arriving after the first Flush
// are proceeded but not recorded. When ctx ends before the in-flight calls
// finish, Flush returns the ctx error and may be called again. Flushing from
// inside a call routed through the same instance blocks until ctx is done.
type TimerInterceptor struct {
	logger    *slog.Logger
	policy    FailurePolicy
	now       func() time.Time
	reporters []TimingReporter

	mu       sync.Mutex
	records  []*contracts.InvocationRecord
	closed   bool
	flushed  bool
	pending  int
	inflight sync.WaitGroup
}

// NewTimerInterceptor creates a new timer interceptor
func NewTimerInterceptor(logger *slog.Logger, opts ...Option) *TimerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	o := newOptions(opts)
	reporters := o.reporters
	if len(reporters) == 0 {
		reporters = []TimingReporter{NewLogReporter(logger)}
	}

	return &TimerInterceptor{
		logger:    logger,
		policy:    o.policy,
		now:       o.now,
		reporters: reporters,
	}
}

// Intercept implements Interceptor
func (i *TimerInterceptor) Intercept(ctx context.Context, inv contracts.Invocation) error {
	if !i.admit() {
		i.logger.WarnContext(ctx, "timer already flushed, call not recorded",
			"invocation", inv.Key().String(),
			"invocationId", inv.ID(),
		)
		return i.policy.settle(observedFailure(inv, inv.Proceed(ctx)))
	}
	defer i.release()

	record := contracts.NewInvocationRecord(inv, i.now())

	var failure error
	defer func() {
		if r := recover(); r != nil {
			i.complete(record, inv, &contracts.PanicError{Key: inv.Key(), Value: r})
			panic(r)
		}
		i.complete(record, inv, failure)
	}()

	failure = observedFailure(inv, inv.Proceed(ctx))
	return i.policy.settle(failure)
}

// Name implements Interceptor
func (i *TimerInterceptor) Name() string {
	return "TimerInterceptor"
}

func (i *TimerInterceptor) admit() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return false
	}
	i.pending++
	i.inflight.Add(1)
	return true
}

func (i *TimerInterceptor) release() {
	i.mu.Lock()
	i.pending--
	i.mu.Unlock()
	i.inflight.Done()
}

func (i *TimerInterceptor) complete(record *contracts.InvocationRecord, inv contracts.Invocation, failure error) {
	record.Complete(i.now(), inv.ReturnValue(), failure)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.records = append(i.records, record)
}

// Records returns a copy of the records collected so far
func (i *TimerInterceptor) Records() []contracts.InvocationRecord {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]contracts.InvocationRecord, len(i.records))
	for idx, r := range i.records {
		out[idx] = *r
	}
	return out
}

// Flush closes the interceptor, waits for in-flight calls, summarizes the
// records per call site and sends the reports to every reporter. Once it has
// produced reports, later calls return ErrTimerClosed.
func (i *TimerInterceptor) Flush(ctx context.Context) ([]TimingReport, error) {
	i.mu.Lock()
	if i.flushed {
		i.mu.Unlock()
		return nil, ErrTimerClosed
	}
	i.closed = true
	pending := i.pending
	i.mu.Unlock()

	if pending > 0 {
		if err := i.waitInflight(ctx); err != nil {
			return nil, err
		}
	}

	i.mu.Lock()
	if i.flushed {
		i.mu.Unlock()
		return nil, ErrTimerClosed
	}
	i.flushed = true
	i.mu.Unlock()

	reports, err := BuildTimingReports(i.Records(), i.now())
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, reporter := range i.reporters {
		if err := reporter.Report(ctx, reports); err != nil {
			i.logger.ErrorContext(ctx, "timing reporter failed", "error", err)
			errs = append(errs, err)
		}
	}

	return reports, errors.Join(errs...)
}

// waitInflight blocks until admitted calls have completed. Completion wins
// over a ctx that ends at the same time.
func (i *TimerInterceptor) waitInflight(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		i.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		select {
		case <-done:
			return nil
		default:
			return fmt.Errorf("waiting for in-flight calls: %w", ctx.Err())
		}
	}
}

// Close flushes the interceptor and discards the reports
func (i *TimerInterceptor) Close() error {
	_, err := i.Flush(context.Background())
	return err
}

// BuildTimingReports groups completed records by call site, in the order each
// site was first seen, and summarizes their elapsed times.
func BuildTimingReports(records []contracts.InvocationRecord, generatedAt time.Time) ([]TimingReport, error) {
	var order []contracts.InvocationKey
	groups := make(map[contracts.InvocationKey][]contracts.InvocationRecord)

	for _, r := range records {
		if !r.Completed() {
			continue
		}
		if _, seen := groups[r.Key]; !seen {
			order = append(order, r.Key)
		}
		groups[r.Key] = append(groups[r.Key], r)
	}

	reports := make([]TimingReport, 0, len(order))
	for _, key := range order {
		group := groups[key]

		summary, err := stats.Summarize(stats.Select(group, func(r contracts.InvocationRecord) float64 {
			return r.ElapsedMilliseconds()
		}))
		if err != nil {
			return nil, fmt.Errorf("summarizing %s: %w", key, err)
		}

		failures := 0
		for _, r := range group {
			if !r.Succeeded() {
				failures++
			}
		}

		reports = append(reports, TimingReport{
			Key:         key,
			Summary:     summary,
			Failures:    failures,
			GeneratedAt: generatedAt,
		})
	}

	return reports, nil
}
