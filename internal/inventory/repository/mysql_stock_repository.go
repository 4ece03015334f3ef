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

// MySQLStockRepository implements the stock guard for MySQL. Every counter
// mutation is a single conditional UPDATE.
type MySQLStockRepository struct {
	db *sql.DB
}

// NewMySQLStockRepository creates a new MySQLStockRepository
func NewMySQLStockRepository(db *sql.DB) *MySQLStockRepository {
	return &MySQLStockRepository{db: db}
}

// TryReserve adds qty to reserved iff total_stock - reserved >= qty.
func (r *MySQLStockRepository) TryReserve(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	id, err := variantID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal variant id")
	}

	query := `UPDATE inventory_stock
			  SET reserved = reserved + ?, updated_at = ?
			  WHERE variant_id = ? AND total_stock - reserved >= ?`

	result, err := querier.ExecContext(ctx, query, qty, time.Now().UTC(), id, qty)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to reserve stock")
	}

	return affectedOne(result)
}

// ReleaseReserved gives qty reserved units back.
func (r *MySQLStockRepository) ReleaseReserved(ctx context.Context, variantID uuid.UUID, qty int) error {
	querier := database.GetTx(ctx, r.db)

	id, err := variantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal variant id")
	}

	query := `UPDATE inventory_stock
			  SET reserved = reserved - ?, updated_at = ?
			  WHERE variant_id = ? AND reserved >= ?`

	result, err := querier.ExecContext(ctx, query, qty, time.Now().UTC(), id, qty)
	if err != nil {
		return apperrors.Wrap(err, "failed to release reserved stock")
	}

	return requireOne(result, variantID)
}

// CommitReserved turns qty reserved units into a physical decrement.
func (r *MySQLStockRepository) CommitReserved(ctx context.Context, variantID uuid.UUID, qty int) error {
	querier := database.GetTx(ctx, r.db)

	id, err := variantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal variant id")
	}

	query := `UPDATE inventory_stock
			  SET total_stock = total_stock - ?, reserved = reserved - ?, updated_at = ?
			  WHERE variant_id = ? AND reserved >= ?`

	result, err := querier.ExecContext(ctx, query, qty, qty, time.Now().UTC(), id, qty)
	if err != nil {
		return apperrors.Wrap(err, "failed to commit reserved stock")
	}

	return requireOne(result, variantID)
}

// Restock adds qty to total_stock, creating the counter row when missing.
func (r *MySQLStockRepository) Restock(ctx context.Context, variantID uuid.UUID, qty int) error {
	querier := database.GetTx(ctx, r.db)

	id, err := variantID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal variant id")
	}

	query := `INSERT INTO inventory_stock (variant_id, total_stock, reserved, updated_at)
			  VALUES (?, ?, 0, ?)
			  ON DUPLICATE KEY UPDATE total_stock = total_stock + VALUES(total_stock), updated_at = VALUES(updated_at)`

	if _, err := querier.ExecContext(ctx, query, id, qty, time.Now().UTC()); err != nil {
		return apperrors.Wrap(err, "failed to restock")
	}
	return nil
}

// Get returns the counters of one variant.
func (r *MySQLStockRepository) Get(ctx context.Context, variantID uuid.UUID) (*domain.Stock, error) {
	querier := database.GetTx(ctx, r.db)

	id, err := variantID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal variant id")
	}

	query := `SELECT total_stock, reserved, updated_at FROM inventory_stock WHERE variant_id = ?`

	stock := domain.Stock{VariantID: variantID}
	err = querier.QueryRowContext(ctx, query, id).Scan(&stock.TotalStock, &stock.Reserved, &stock.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStockNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get stock")
	}
	return &stock, nil
}
