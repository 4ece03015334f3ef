// Package bus provides the message transport the outbox relays to and the
// consumers read from. Three drivers are available: Kafka, Redis Streams and
// gocloud.dev pubsub.
package bus

import (
	"context"
	"log/slog"
	"maps"
	"time"

	apperrors "github.com/allisson/checkout/internal/errors"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
)

// Supported drivers.
const (
	DriverKafka  = "kafka"
	DriverRedis  = "redis"
	DriverPubSub = "pubsub"
)

// ErrUnknownDriver is returned by the factories for an unsupported driver name.
var ErrUnknownDriver = apperrors.New("unknown bus driver")

// redeliveryDelay is the pause between two attempts at handling the same message.
const redeliveryDelay = time.Second

// Message is what travels on the bus: a JSON payload plus string headers.
type Message struct {
	Exchange   string
	RoutingKey string
	Headers    map[string]string
	Payload    []byte
}

// ID returns the outbox message id carried in the headers.
func (m Message) ID() string {
	return m.Headers[outboxDomain.HeaderMessageID]
}

// Key returns the partitioning key: the aggregate id when present, else the message id.
func (m Message) Key() string {
	if key := m.Headers[outboxDomain.HeaderAggregateID]; key != "" {
		return key
	}
	return m.ID()
}

// headersWithRoutingKey returns a copy of the headers that always carries the routing key.
func (m Message) headersWithRoutingKey() map[string]string {
	h := make(map[string]string, len(m.Headers)+1)
	maps.Copy(h, m.Headers)
	h[outboxDomain.HeaderRoutingKey] = m.RoutingKey
	return h
}

// Handler processes one delivered message. A returned error asks for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Sender delivers messages to an exchange.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber delivers messages from the configured exchanges to a handler
// until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// handleWithRetry calls handler until it succeeds or ctx ends. It returns
// false when ctx ended first, in which case the message must not be acknowledged.
func handleWithRetry(ctx context.Context, handler Handler, msg Message, logger *slog.Logger) bool {
	for {
		err := handler(ctx, msg)
		if err == nil {
			return true
		}

		logger.Error("failed to handle bus message",
			slog.String("exchange", msg.Exchange),
			slog.String("routing_key", msg.RoutingKey),
			slog.String("message_id", msg.ID()),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(redeliveryDelay):
		}
	}
}
