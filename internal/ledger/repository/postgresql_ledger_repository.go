// Package repository provides data persistence implementations for the idempotency ledger.
package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/ledger/domain"
)

// PostgreSQLLedgerRepository handles ledger persistence for PostgreSQL
type PostgreSQLLedgerRepository struct {
	db *sql.DB
}

// NewPostgreSQLLedgerRepository creates a new PostgreSQLLedgerRepository
func NewPostgreSQLLedgerRepository(db *sql.DB) *PostgreSQLLedgerRepository {
	return &PostgreSQLLedgerRepository{db: db}
}

// Exists reports whether (source, key) was recorded.
func (r *PostgreSQLLedgerRepository) Exists(ctx context.Context, source, key string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS(SELECT 1 FROM processed_events WHERE source = $1 AND event_key = $2)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, source, key).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check processed event")
	}
	return exists, nil
}

// Insert records an entry. An existing (source, key) pair is left untouched.
func (r *PostgreSQLLedgerRepository) Insert(ctx context.Context, event *domain.ProcessedEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO processed_events (source, event_key, processed_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (source, event_key) DO NOTHING`

	if _, err := querier.ExecContext(ctx, query, event.Source, event.Key, event.ProcessedAt); err != nil {
		return apperrors.Wrap(err, "failed to insert processed event")
	}
	return nil
}
