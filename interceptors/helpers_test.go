package interceptors

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glimte/mmate-intercept/contracts"
)

var (
	divideKey = contracts.NewInvocationKey("Calculator", "Divide", "int", "int")
	addKey    = contracts.NewInvocationKey("Calculator", "Add", "int", "int")

	errDivideByZero = errors.New("division by zero")
)

func divide(ctx context.Context, args []any) (any, error) {
	a, b := args[0].(int), args[1].(int)
	if b == 0 {
		return nil, errDivideByZero
	}
	return a / b, nil
}

func add(ctx context.Context, args []any) (any, error) {
	return args[0].(int) + args[1].(int), nil
}

type capturedRecord struct {
	level   slog.Level
	message string
	attrs   map[string]any
}

type captureStore struct {
	mu      sync.Mutex
	records []capturedRecord
}

// captureHandler is a slog.Handler that keeps every record in memory
type captureHandler struct {
	store *captureStore
	attrs []slog.Attr
}

func newCaptureLogger() (*slog.Logger, *captureHandler) {
	h := &captureHandler{store: &captureStore{}}
	return slog.New(h), h
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.records = append(h.store.records, capturedRecord{level: r.Level, message: r.Message, attrs: attrs})
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{store: h.store, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) all() []capturedRecord {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return append([]capturedRecord(nil), h.store.records...)
}

func (h *captureHandler) messages() []string {
	var out []string
	for _, r := range h.all() {
		out = append(out, r.message)
	}
	return out
}

func (h *captureHandler) count(level slog.Level, prefix string) int {
	n := 0
	for _, r := range h.all() {
		if r.level == level && strings.HasPrefix(r.message, prefix) {
			n++
		}
	}
	return n
}

// scriptedClock returns its current time and then advances by the next step
type scriptedClock struct {
	mu    sync.Mutex
	now   time.Time
	steps []time.Duration
}

func newScriptedClock(steps ...time.Duration) *scriptedClock {
	return &scriptedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), steps: steps}
}

func (c *scriptedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now
	if len(c.steps) > 0 {
		c.now = c.now.Add(c.steps[0])
		c.steps = c.steps[1:]
	}
	return now
}

// elapsedSteps builds clock steps so that consecutive timed calls take the given durations
func elapsedSteps(durations ...time.Duration) []time.Duration {
	steps := make([]time.Duration, 0, 2*len(durations))
	for _, d := range durations {
		steps = append(steps, d, 0)
	}
	return steps
}
