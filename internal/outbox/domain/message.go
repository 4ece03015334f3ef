// Package domain defines the core outbox domain entities and types.
package domain

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/checkout/internal/errors"
)

// Well-known header keys stamped on every outbox message.
const (
	HeaderMessageID   = "message_id"
	HeaderRoutingKey  = "routing_key"
	HeaderAggregateID = "aggregate_id"
	HeaderContentType = "content_type"
)

// ContentTypeJSON is the only payload encoding written to the outbox.
const ContentTypeJSON = "application/json"

// Message is a row of the transactional outbox. PublishedAt stays nil until a
// confirmed send; Attempts only grows, and only on failed sends. Rows are
// never deleted.
type Message struct {
	ID          uuid.UUID
	Exchange    string
	RoutingKey  string
	Headers     map[string]string
	Payload     json.RawMessage
	CreatedAt   time.Time
	PublishedAt *time.Time
	Attempts    int
}

// NewMessage builds an unpublished message, serializing payload as JSON.
// The only failure mode is a payload that cannot be marshaled.
func NewMessage(exchange, routingKey string, headers map[string]string, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal outbox payload")
	}

	id := uuid.Must(uuid.NewV7())

	h := make(map[string]string, len(headers)+3)
	maps.Copy(h, headers)
	h[HeaderMessageID] = id.String()
	h[HeaderRoutingKey] = routingKey
	h[HeaderContentType] = ContentTypeJSON

	return &Message{
		ID:         id,
		Exchange:   exchange,
		RoutingKey: routingKey,
		Headers:    h,
		Payload:    body,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// IsPublished reports whether the message was confirmed by the bus.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// MarkPublished records a confirmed send. Attempts is left untouched.
func (m *Message) MarkPublished(at time.Time) {
	at = at.UTC()
	m.PublishedAt = &at
}

// RecordFailedAttempt counts one failed send. PublishedAt is left untouched.
func (m *Message) RecordFailedAttempt() {
	m.Attempts++
}

// Event is a domain event buffered by an aggregate during a unit of work and
// handed to the outbox at the persistence boundary.
type Event struct {
	Exchange    string
	RoutingKey  string
	AggregateID string
	Payload     any
}

// Stats summarizes the outbox backlog for alerting.
type Stats struct {
	Unpublished int64
	MaxAttempts int
	OldestAt    *time.Time
}
