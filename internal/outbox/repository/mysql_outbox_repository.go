package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/outbox/domain"
)

// MySQLOutboxRepository handles outbox message persistence for MySQL.
// UUIDs are stored as BINARY(16).
type MySQLOutboxRepository struct {
	db *sql.DB
}

// NewMySQLOutboxRepository creates a new MySQLOutboxRepository
func NewMySQLOutboxRepository(db *sql.DB) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{
		db: db,
	}
}

// Create inserts a new outbox message within the transaction carried by ctx.
func (r *MySQLOutboxRepository) Create(ctx context.Context, msg *domain.Message) error {
	querier := database.GetTx(ctx, r.db)

	headersJSON, err := json.Marshal(msg.Headers)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox headers")
	}

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := msg.ID.MarshalBinary()
	if err != nil {
		return err
	}

	query := `INSERT INTO outbox_messages (id, exchange, routing_key, headers_json, payload_json, created_at, published_at, attempts)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, idBytes, msg.Exchange, msg.RoutingKey, headersJSON,
		[]byte(msg.Payload), msg.CreatedAt, msg.PublishedAt, msg.Attempts)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox message")
	}

	return nil
}

// FindUnpublished retrieves unpublished messages oldest first, skipping rows
// locked by another publisher.
func (r *MySQLOutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*domain.Message, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, exchange, routing_key, headers_json, payload_json, created_at, published_at, attempts
			  FROM outbox_messages
			  WHERE published_at IS NULL
			  ORDER BY created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query unpublished outbox messages")
	}
	defer rows.Close() //nolint:errcheck

	return scanMessages(rows)
}

// MarkPublished sets published_at for a confirmed send.
func (r *MySQLOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	query := `UPDATE outbox_messages SET published_at = ? WHERE id = ? AND published_at IS NULL`

	if _, err := querier.ExecContext(ctx, query, at, idBytes); err != nil {
		return apperrors.Wrap(err, "failed to mark outbox message as published")
	}
	return nil
}

// IncrementAttempts adds exactly one failed attempt.
func (r *MySQLOutboxRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	query := `UPDATE outbox_messages SET attempts = attempts + 1 WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, idBytes); err != nil {
		return apperrors.Wrap(err, "failed to increment outbox message attempts")
	}
	return nil
}

// Stats returns the unpublished backlog size, its highest attempt count and oldest row.
func (r *MySQLOutboxRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*), COALESCE(MAX(attempts), 0), MIN(created_at)
			  FROM outbox_messages
			  WHERE published_at IS NULL`

	return scanStats(querier.QueryRowContext(ctx, query))
}
