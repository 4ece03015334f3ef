// Package repository provides data persistence implementations for audit events.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/allisson/checkout/internal/audit/domain"
	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
)

// PostgreSQLAuditEventRepository implements AuditEvent persistence for PostgreSQL.
type PostgreSQLAuditEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditEventRepository creates a new PostgreSQLAuditEventRepository
func NewPostgreSQLAuditEventRepository(db *sql.DB) *PostgreSQLAuditEventRepository {
	return &PostgreSQLAuditEventRepository{db: db}
}

// Create inserts an audit event, joining the transaction in ctx when there is one.
// Nil metadata is stored as NULL.
func (p *PostgreSQLAuditEventRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	querier := database.GetTx(ctx, p.db)

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal audit event metadata")
		}
	}

	query := `INSERT INTO audit_events (id, user_id, event_type, metadata, created_at)
			  VALUES ($1, $2, $3, $4, $5)`

	var userID any
	if event.UserID != nil {
		userID = *event.UserID
	}

	_, err := querier.ExecContext(ctx, query, event.ID, userID, event.EventType, metadataJSON, event.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit event")
	}

	return nil
}
