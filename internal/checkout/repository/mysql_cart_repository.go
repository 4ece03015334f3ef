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

// MySQLCartRepository handles cart persistence for MySQL. UUIDs are stored as BINARY(16).
type MySQLCartRepository struct {
	db *sql.DB
}

// NewMySQLCartRepository creates a new MySQLCartRepository
func NewMySQLCartRepository(db *sql.DB) *MySQLCartRepository {
	return &MySQLCartRepository{db: db}
}

// GetForUser loads and locks a cart owned by userID together with its items.
func (r *MySQLCartRepository) GetForUser(ctx context.Context, cartID, userID uuid.UUID) (*domain.Cart, error) {
	querier := database.GetTx(ctx, r.db)

	id, err := cartID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal cart id")
	}
	owner, err := userID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal user id")
	}

	query := `SELECT id, user_id, status, shipping_address_json, created_at, updated_at
			  FROM carts
			  WHERE id = ? AND user_id = ?
			  FOR UPDATE`

	cart, err := scanCart(querier.QueryRowContext(ctx, query, id, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get cart")
	}

	rows, err := querier.QueryContext(ctx,
		`SELECT variant_id, quantity FROM cart_items WHERE cart_id = ? ORDER BY created_at ASC`, id)
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
func (r *MySQLCartRepository) UpdateStatus(ctx context.Context, cart *domain.Cart) error {
	querier := database.GetTx(ctx, r.db)

	id, err := cart.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal cart id")
	}

	query := `UPDATE carts SET status = ?, updated_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, string(cart.Status), cart.UpdatedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update cart")
	}
	return requireOne(result, domain.ErrCartNotFound)
}
