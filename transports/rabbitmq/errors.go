package rabbitmq

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrPublisherClosed     = errors.New("rabbitmq: publisher is closed")
	ErrPublishNotConfirmed = errors.New("rabbitmq: publish not confirmed")
	ErrPublishTimeout      = errors.New("rabbitmq: publish confirmation timeout")
)

// PublishError represents a failed report publish
type PublishError struct {
	Exchange   string // Target exchange
	RoutingKey string // Routing key used
	Err        error  // Underlying error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("rabbitmq publish error: failed to publish to %s/%s: %v",
		e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// SanitizeURL hides the password of an AMQP URL
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
