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

// MySQLOrderRepository handles order persistence for MySQL. UUIDs are stored as BINARY(16).
type MySQLOrderRepository struct {
	db *sql.DB
}

// NewMySQLOrderRepository creates a new MySQLOrderRepository
func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

// Create inserts an order. A second order for the same cart is a conflict.
func (r *MySQLOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, r.db)

	ids, err := marshalIDs(order.ID, order.UserID, order.CartID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal order ids")
	}
	linesJSON, shippingJSON, err := marshalOrder(order)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, ids[0], ids[1], ids[2], string(order.Status),
		order.Total.Amount, order.Total.Currency, linesJSON, shippingJSON,
		nullString(order.CheckoutSessionID), nullString(order.PaymentIntentID), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "order already exists")
		}
		return apperrors.Wrap(err, "failed to create order")
	}
	return nil
}

// Update persists the status and payment references of an order. MySQL
// reports unchanged rows as unaffected, so the row count is not checked.
func (r *MySQLOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, r.db)

	id, err := order.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal order id")
	}

	query := `UPDATE orders
			  SET status = ?, checkout_session_id = ?, payment_intent_id = ?, updated_at = ?
			  WHERE id = ?`

	_, err = querier.ExecContext(ctx, query, string(order.Status), nullString(order.CheckoutSessionID),
		nullString(order.PaymentIntentID), order.UpdatedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update order")
	}
	return nil
}

// GetByID loads and locks an order.
func (r *MySQLOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	querier := database.GetTx(ctx, r.db)

	binID, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal order id")
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ? FOR UPDATE`

	return r.getOne(querier.QueryRowContext(ctx, query, binID))
}

// GetByPaymentIntentID loads and locks the order paid through a payment intent.
func (r *MySQLOrderRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_intent_id = ? FOR UPDATE`

	return r.getOne(querier.QueryRowContext(ctx, query, paymentIntentID))
}

func (r *MySQLOrderRepository) getOne(row *sql.Row) (*domain.Order, error) {
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order")
	}
	return order, nil
}

func marshalIDs(ids ...uuid.UUID) ([][]byte, error) {
	out := make([][]byte, len(ids))
	for i, id := range ids {
		b, err := id.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
