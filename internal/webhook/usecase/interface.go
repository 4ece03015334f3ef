// Package usecase implements the inbound payment event gateway: verify,
// deduplicate, enqueue to the outbox and record an audit entry.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
	paymentDomain "github.com/allisson/checkout/internal/payment/domain"
)

// Verifier authenticates and normalizes raw provider payloads.
type Verifier interface {
	Parse(raw []byte, signatureHeader string) (*paymentDomain.EventEnvelope, error)
}

// EventLedger is the idempotency store for external events.
type EventLedger interface {
	AlreadyProcessed(ctx context.Context, source, key string) (bool, error)
	MarkProcessed(ctx context.Context, source, key string) error
}

// OutboxStore appends messages inside the caller's transaction.
type OutboxStore interface {
	Enqueue(
		ctx context.Context,
		exchange, routingKey string,
		headers map[string]string,
		payload any,
	) (*outboxDomain.Message, error)
}

// AuditRecorder records audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, userID *uuid.UUID, eventType string, metadata map[string]any, at time.Time) error
}

// Result describes how an inbound event was handled.
type Result struct {
	EventID    string
	Type       string
	RoutingKey string
	// Duplicate is true when the event was already processed; nothing was written.
	Duplicate bool
}

// WebhookUseCase processes inbound provider events.
type WebhookUseCase interface {
	Process(ctx context.Context, source string, raw []byte, signature string) (*Result, error)
}
