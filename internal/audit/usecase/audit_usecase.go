// Package usecase implements the audit recorder used by checkout and webhook processing.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/audit/domain"
	apperrors "github.com/allisson/checkout/internal/errors"
)

// AuditEventRepository defines audit event persistence operations
type AuditEventRepository interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
}

// AuditRecorder records audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, userID *uuid.UUID, eventType string, metadata map[string]any, at time.Time) error
}

type auditRecorder struct {
	repo AuditEventRepository
}

// NewAuditRecorder creates a new AuditRecorder
func NewAuditRecorder(repo AuditEventRepository) AuditRecorder {
	return &auditRecorder{repo: repo}
}

// Record stores one audit entry in the caller's transaction, if any.
func (a *auditRecorder) Record(
	ctx context.Context,
	userID *uuid.UUID,
	eventType string,
	metadata map[string]any,
	at time.Time,
) error {
	if eventType == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "audit event type is required")
	}

	return a.repo.Create(ctx, &domain.AuditEvent{
		ID:        uuid.Must(uuid.NewV7()),
		UserID:    userID,
		EventType: eventType,
		Metadata:  metadata,
		CreatedAt: at.UTC(),
	})
}
