package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/ledger/domain"
)

// MySQLLedgerRepository handles ledger persistence for MySQL
type MySQLLedgerRepository struct {
	db *sql.DB
}

// NewMySQLLedgerRepository creates a new MySQLLedgerRepository
func NewMySQLLedgerRepository(db *sql.DB) *MySQLLedgerRepository {
	return &MySQLLedgerRepository{db: db}
}

// Exists reports whether (source, key) was recorded.
func (r *MySQLLedgerRepository) Exists(ctx context.Context, source, key string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS(SELECT 1 FROM processed_events WHERE source = ? AND event_key = ?)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, source, key).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check processed event")
	}
	return exists, nil
}

// Insert records an entry. An existing (source, key) pair is left untouched.
func (r *MySQLLedgerRepository) Insert(ctx context.Context, event *domain.ProcessedEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT IGNORE INTO processed_events (source, event_key, processed_at) VALUES (?, ?, ?)`

	if _, err := querier.ExecContext(ctx, query, event.Source, event.Key, event.ProcessedAt); err != nil {
		return apperrors.Wrap(err, "failed to insert processed event")
	}
	return nil
}
