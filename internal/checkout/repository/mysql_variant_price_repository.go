package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/checkout/domain"
	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
)

// MySQLVariantPriceRepository reads current variant prices from MySQL
type MySQLVariantPriceRepository struct {
	db *sql.DB
}

// NewMySQLVariantPriceRepository creates a new MySQLVariantPriceRepository
func NewMySQLVariantPriceRepository(db *sql.DB) *MySQLVariantPriceRepository {
	return &MySQLVariantPriceRepository{db: db}
}

// ListPrices returns the prices of the given variants keyed by variant id.
func (r *MySQLVariantPriceRepository) ListPrices(
	ctx context.Context,
	variantIDs []uuid.UUID,
) (map[uuid.UUID]domain.VariantPrice, error) {
	prices := make(map[uuid.UUID]domain.VariantPrice, len(variantIDs))
	if len(variantIDs) == 0 {
		return prices, nil
	}

	querier := database.GetTx(ctx, r.db)

	ids, err := marshalIDs(variantIDs...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal variant ids")
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT id, name, price_amount, currency FROM product_variants WHERE id IN (` +
		placeholders(len(variantIDs), false) + `)`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list variant prices")
	}
	defer rows.Close() //nolint:errcheck

	return scanPrices(rows, prices)
}
