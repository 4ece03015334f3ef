package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/checkout/domain"
	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
)

// PostgreSQLVariantPriceRepository reads current variant prices from PostgreSQL
type PostgreSQLVariantPriceRepository struct {
	db *sql.DB
}

// NewPostgreSQLVariantPriceRepository creates a new PostgreSQLVariantPriceRepository
func NewPostgreSQLVariantPriceRepository(db *sql.DB) *PostgreSQLVariantPriceRepository {
	return &PostgreSQLVariantPriceRepository{db: db}
}

// ListPrices returns the prices of the given variants keyed by variant id.
// Unknown variants are absent from the map.
func (r *PostgreSQLVariantPriceRepository) ListPrices(
	ctx context.Context,
	variantIDs []uuid.UUID,
) (map[uuid.UUID]domain.VariantPrice, error) {
	prices := make(map[uuid.UUID]domain.VariantPrice, len(variantIDs))
	if len(variantIDs) == 0 {
		return prices, nil
	}

	querier := database.GetTx(ctx, r.db)

	args := make([]any, len(variantIDs))
	for i, id := range variantIDs {
		args[i] = id
	}

	query := `SELECT id, name, price_amount, currency FROM product_variants WHERE id IN (` +
		placeholders(len(variantIDs), true) + `)`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list variant prices")
	}
	defer rows.Close() //nolint:errcheck

	return scanPrices(rows, prices)
}

func scanPrices(rows *sql.Rows, prices map[uuid.UUID]domain.VariantPrice) (map[uuid.UUID]domain.VariantPrice, error) {
	for rows.Next() {
		var (
			price    domain.VariantPrice
			amount   int64
			currency string
		)
		if err := rows.Scan(&price.VariantID, &price.Name, &amount, &currency); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan variant price")
		}
		price.Price = domain.NewMoney(amount, currency)
		prices[price.VariantID] = price
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return prices, nil
}
