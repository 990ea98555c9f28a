package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel used by ReportPublisher
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	Close() error
}

// MessageTypeHeader carries the report message type
const MessageTypeHeader = "x-message-type"

// TimingReportMessageType is the message type of a published timing report
const TimingReportMessageType = "intercept.TimingReport"

// PublisherConfig holds configuration for the report publisher
type PublisherConfig struct {
	Exchange       string
	ExchangeKind   string
	RoutingPrefix  string
	Durable        bool
	Confirms       bool
	ConfirmTimeout time.Duration
	Logger         *slog.Logger
}

// PublisherOption configures the report publisher
type PublisherOption func(*PublisherConfig)

// WithExchange sets the exchange name and kind
func WithExchange(name, kind string) PublisherOption {
	return func(c *PublisherConfig) {
		c.Exchange = name
		c.ExchangeKind = kind
	}
}

// WithRoutingPrefix sets the routing key prefix. Reports are routed as
// prefix.Owner.Method.
func WithRoutingPrefix(prefix string) PublisherOption {
	return func(c *PublisherConfig) {
		c.RoutingPrefix = prefix
	}
}

// WithDurable sets whether the exchange survives a broker restart
func WithDurable(durable bool) PublisherOption {
	return func(c *PublisherConfig) {
		c.Durable = durable
	}
}

// WithConfirms enables publisher confirms with the given timeout
func WithConfirms(timeout time.Duration) PublisherOption {
	return func(c *PublisherConfig) {
		c.Confirms = true
		c.ConfirmTimeout = timeout
	}
}

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(c *PublisherConfig) {
		c.Logger = logger
	}
}

// ReportPublisher publishes timing reports as JSON messages, one per call site.
// It implements interceptors.TimingReporter.
type ReportPublisher struct {
	mu       sync.Mutex
	channel  Channel
	conn     *amqp.Connection
	config   PublisherConfig
	confirms chan amqp.Confirmation
	// deliveryTag is the tag of the last message published in confirm mode
	deliveryTag uint64
	logger      *slog.Logger
	closed      bool
}

// NewReportPublisher declares the exchange on channel and returns a publisher using it
func NewReportPublisher(channel Channel, opts ...PublisherOption) (*ReportPublisher, error) {
	if channel == nil {
		return nil, fmt.Errorf("channel cannot be nil")
	}

	config := PublisherConfig{
		Exchange:       "intercept.timing",
		ExchangeKind:   amqp.ExchangeTopic,
		RoutingPrefix:  "timing",
		Durable:        true,
		ConfirmTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if err := channel.ExchangeDeclare(config.Exchange, config.ExchangeKind, config.Durable, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", config.Exchange, err)
	}

	p := &ReportPublisher{
		channel: channel,
		config:  config,
		logger:  config.Logger,
	}

	if config.Confirms {
		if err := channel.Confirm(false); err != nil {
			return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
		}
		p.confirms = channel.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))
	}

	return p, nil
}

// confirmBuffer leaves room for confirms that arrive after their publish timed out
const confirmBuffer = 16

// Dial connects to url, opens a channel and creates a publisher owning both
func Dial(url string, opts ...PublisherOption) (*ReportPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", SanitizeURL(url), err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := NewReportPublisher(ch, opts...)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// RoutingKey returns the routing key used for a report
func (p *ReportPublisher) RoutingKey(report interceptors.TimingReport) string {
	parts := []string{report.Key.Owner, report.Key.Method}
	if p.config.RoutingPrefix != "" {
		parts = append([]string{p.config.RoutingPrefix}, parts...)
	}
	return strings.Join(parts, ".")
}

// Report implements interceptors.TimingReporter. Every report is attempted;
// failures are joined.
func (p *ReportPublisher) Report(ctx context.Context, reports []interceptors.TimingReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	var errs []error
	for _, report := range reports {
		if err := p.publish(ctx, report); err != nil {
			p.logger.ErrorContext(ctx, "failed to publish timing report",
				"invocation", report.Key.String(),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		p.logger.DebugContext(ctx, "published timing report",
			"invocation", report.Key.String(),
			"exchange", p.config.Exchange,
		)
	}
	return errors.Join(errs...)
}

func (p *ReportPublisher) publish(ctx context.Context, report interceptors.TimingReport) error {
	routingKey := p.RoutingKey(report)
	fail := func(err error) error {
		return &PublishError{Exchange: p.config.Exchange, RoutingKey: routingKey, Err: err}
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal report: %w", err))
	}

	deliveryMode := amqp.Transient
	if p.config.Durable {
		deliveryMode = amqp.Persistent
	}

	msg := amqp.Publishing{
		Headers:      amqp.Table{MessageTypeHeader: TimingReportMessageType},
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		MessageId:    uuid.New().String(),
		Timestamp:    report.GeneratedAt,
		Type:         TimingReportMessageType,
		Body:         body,
	}

	if err := p.channel.PublishWithContext(ctx, p.config.Exchange, routingKey, false, false, msg); err != nil {
		return fail(err)
	}

	if p.confirms == nil {
		return nil
	}
	p.deliveryTag++

	if err := p.awaitConfirm(ctx, p.deliveryTag); err != nil {
		return fail(err)
	}
	return nil
}

// awaitConfirm waits for the confirm of tag. Confirms for earlier tags belong
// to publishes that already gave up waiting and are discarded.
func (p *ReportPublisher) awaitConfirm(ctx context.Context, tag uint64) error {
	timeout := time.NewTimer(p.config.ConfirmTimeout)
	defer timeout.Stop()

	for {
		select {
		case confirm, ok := <-p.confirms:
			if !ok {
				return ErrPublishNotConfirmed
			}
			if confirm.DeliveryTag < tag {
				p.logger.DebugContext(ctx, "discarding late publisher confirm",
					"deliveryTag", confirm.DeliveryTag,
					"ack", confirm.Ack,
				)
				continue
			}
			if confirm.DeliveryTag > tag || !confirm.Ack {
				return ErrPublishNotConfirmed
			}
			return nil
		case <-timeout.C:
			return ErrPublishTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the channel, and the connection when the publisher was dialed
func (p *ReportPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

var _ interceptors.TimingReporter = (*ReportPublisher)(nil)
