// Package repository provides data persistence implementations for inventory
// stock counters and reservations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/inventory/domain"
)

// PostgreSQLStockRepository implements the stock guard for PostgreSQL. Every
// counter mutation is a single conditional UPDATE.
type PostgreSQLStockRepository struct {
	db *sql.DB
}

// NewPostgreSQLStockRepository creates a new PostgreSQLStockRepository
func NewPostgreSQLStockRepository(db *sql.DB) *PostgreSQLStockRepository {
	return &PostgreSQLStockRepository{db: db}
}

// TryReserve adds qty to reserved iff total_stock - reserved >= qty. It
// reports whether the row was updated; nothing changes when it was not.
func (r *PostgreSQLStockRepository) TryReserve(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE inventory_stock
			  SET reserved = reserved + $1, updated_at = $2
			  WHERE variant_id = $3 AND total_stock - reserved >= $1`

	result, err := querier.ExecContext(ctx, query, qty, time.Now().UTC(), variantID)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to reserve stock")
	}

	return affectedOne(result)
}

// ReleaseReserved gives qty reserved units back.
func (r *PostgreSQLStockRepository) ReleaseReserved(ctx context.Context, variantID uuid.UUID, qty int) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE inventory_stock
			  SET reserved = reserved - $1, updated_at = $2
			  WHERE variant_id = $3 AND reserved >= $1`

	result, err := querier.ExecContext(ctx, query, qty, time.Now().UTC(), variantID)
	if err != nil {
		return apperrors.Wrap(err, "failed to release reserved stock")
	}

	return requireOne(result, variantID)
}

// CommitReserved turns qty reserved units into a physical decrement.
func (r *PostgreSQLStockRepository) CommitReserved(ctx context.Context, variantID uuid.UUID, qty int) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE inventory_stock
			  SET total_stock = total_stock - $1, reserved = reserved - $1, updated_at = $2
			  WHERE variant_id = $3 AND reserved >= $1`

	result, err := querier.ExecContext(ctx, query, qty, time.Now().UTC(), variantID)
	if err != nil {
		return apperrors.Wrap(err, "failed to commit reserved stock")
	}

	return requireOne(result, variantID)
}

// Restock adds qty to total_stock, creating the counter row when missing.
func (r *PostgreSQLStockRepository) Restock(ctx context.Context, variantID uuid.UUID, qty int) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO inventory_stock (variant_id, total_stock, reserved, updated_at)
			  VALUES ($1, $2, 0, $3)
			  ON CONFLICT (variant_id) DO UPDATE
			  SET total_stock = inventory_stock.total_stock + EXCLUDED.total_stock,
			      updated_at = EXCLUDED.updated_at`

	if _, err := querier.ExecContext(ctx, query, variantID, qty, time.Now().UTC()); err != nil {
		return apperrors.Wrap(err, "failed to restock")
	}
	return nil
}

// Get returns the counters of one variant.
func (r *PostgreSQLStockRepository) Get(ctx context.Context, variantID uuid.UUID) (*domain.Stock, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT variant_id, total_stock, reserved, updated_at FROM inventory_stock WHERE variant_id = $1`

	var stock domain.Stock
	err := querier.QueryRowContext(ctx, query, variantID).
		Scan(&stock.VariantID, &stock.TotalStock, &stock.Reserved, &stock.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStockNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get stock")
	}
	return &stock, nil
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read affected rows")
	}
	return n == 1, nil
}

func requireOne(result sql.Result, variantID uuid.UUID) error {
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Wrap(domain.ErrStockNotReserved, "variant "+variantID.String())
	}
	return nil
}
