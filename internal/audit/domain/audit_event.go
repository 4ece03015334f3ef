// Package domain defines the audit trail entries written by checkout and
// payment event processing.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types.
const (
	EventCheckoutStarted      = "checkout_started"
	EventPaymentEventReceived = "payment_event_received"
)

// AuditEvent is one entry of the audit trail. UserID is nil for events not
// triggered by a user, such as provider webhooks.
type AuditEvent struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	EventType string
	Metadata  map[string]any
	CreatedAt time.Time
}
