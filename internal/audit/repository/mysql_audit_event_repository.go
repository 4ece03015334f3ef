package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/allisson/checkout/internal/audit/domain"
	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
)

// MySQLAuditEventRepository implements AuditEvent persistence for MySQL.
// UUIDs are stored as BINARY(16).
type MySQLAuditEventRepository struct {
	db *sql.DB
}

// NewMySQLAuditEventRepository creates a new MySQLAuditEventRepository
func NewMySQLAuditEventRepository(db *sql.DB) *MySQLAuditEventRepository {
	return &MySQLAuditEventRepository{db: db}
}

// Create inserts an audit event, joining the transaction in ctx when there is one.
func (m *MySQLAuditEventRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	querier := database.GetTx(ctx, m.db)

	id, err := event.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit event id")
	}

	var userID []byte
	if event.UserID != nil {
		userID, err = event.UserID.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal user id")
		}
	}

	var metadataJSON []byte
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal audit event metadata")
		}
	}

	query := `INSERT INTO audit_events (id, user_id, event_type, metadata, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, id, userID, event.EventType, metadataJSON, event.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit event")
	}

	return nil
}
