// Package repository provides data persistence implementations for outbox entities.
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

// PostgreSQLOutboxRepository handles outbox message persistence for PostgreSQL
type PostgreSQLOutboxRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxRepository creates a new PostgreSQLOutboxRepository
func NewPostgreSQLOutboxRepository(db *sql.DB) *PostgreSQLOutboxRepository {
	return &PostgreSQLOutboxRepository{
		db: db,
	}
}

// Create inserts a new outbox message. It joins the transaction carried by ctx,
// which is what makes the write atomic with the business change it announces.
func (r *PostgreSQLOutboxRepository) Create(ctx context.Context, msg *domain.Message) error {
	querier := database.GetTx(ctx, r.db)

	headersJSON, err := json.Marshal(msg.Headers)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox headers")
	}

	query := `INSERT INTO outbox_messages (id, exchange, routing_key, headers_json, payload_json, created_at, published_at, attempts)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = querier.ExecContext(ctx, query, msg.ID, msg.Exchange, msg.RoutingKey, headersJSON,
		[]byte(msg.Payload), msg.CreatedAt, msg.PublishedAt, msg.Attempts)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox message")
	}

	return nil
}

// FindUnpublished retrieves unpublished messages oldest first. Rows are locked
// with SKIP LOCKED so concurrent publishers claim disjoint batches.
func (r *PostgreSQLOutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*domain.Message, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, exchange, routing_key, headers_json, payload_json, created_at, published_at, attempts
			  FROM outbox_messages
			  WHERE published_at IS NULL
			  ORDER BY created_at ASC
			  LIMIT $1
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query unpublished outbox messages")
	}
	defer rows.Close() //nolint:errcheck

	return scanMessages(rows)
}

// MarkPublished sets published_at for a confirmed send.
func (r *PostgreSQLOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_messages SET published_at = $1 WHERE id = $2 AND published_at IS NULL`

	if _, err := querier.ExecContext(ctx, query, at, id); err != nil {
		return apperrors.Wrap(err, "failed to mark outbox message as published")
	}
	return nil
}

// IncrementAttempts adds exactly one failed attempt.
func (r *PostgreSQLOutboxRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_messages SET attempts = attempts + 1 WHERE id = $1`

	if _, err := querier.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrap(err, "failed to increment outbox message attempts")
	}
	return nil
}

// Stats returns the unpublished backlog size, its highest attempt count and oldest row.
func (r *PostgreSQLOutboxRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*), COALESCE(MAX(attempts), 0), MIN(created_at)
			  FROM outbox_messages
			  WHERE published_at IS NULL`

	return scanStats(querier.QueryRowContext(ctx, query))
}
