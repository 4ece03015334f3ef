package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/checkout/domain"
	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
)

// PostgreSQLCartRepository handles cart persistence for PostgreSQL
type PostgreSQLCartRepository struct {
	db *sql.DB
}

// NewPostgreSQLCartRepository creates a new PostgreSQLCartRepository
func NewPostgreSQLCartRepository(db *sql.DB) *PostgreSQLCartRepository {
	return &PostgreSQLCartRepository{db: db}
}

// GetForUser loads and locks a cart owned by userID together with its items.
// A cart owned by someone else is reported as not found.
func (r *PostgreSQLCartRepository) GetForUser(ctx context.Context, cartID, userID uuid.UUID) (*domain.Cart, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, user_id, status, shipping_address_json, created_at, updated_at
			  FROM carts
			  WHERE id = $1 AND user_id = $2
			  FOR UPDATE`

	cart, err := scanCart(querier.QueryRowContext(ctx, query, cartID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get cart")
	}

	rows, err := querier.QueryContext(ctx,
		`SELECT variant_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY created_at ASC`, cartID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list cart items")
	}
	defer rows.Close() //nolint:errcheck

	cart.Items, err = scanCartItems(rows)
	if err != nil {
		return nil, err
	}

	return cart, nil
}

// UpdateStatus persists the status of a cart.
func (r *PostgreSQLCartRepository) UpdateStatus(ctx context.Context, cart *domain.Cart) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE carts SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, string(cart.Status), cart.UpdatedAt, cart.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update cart")
	}
	return requireOne(result, domain.ErrCartNotFound)
}
