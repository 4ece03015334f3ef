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

// PostgreSQLOrderRepository handles order persistence for PostgreSQL
type PostgreSQLOrderRepository struct {
	db *sql.DB
}

// NewPostgreSQLOrderRepository creates a new PostgreSQLOrderRepository
func NewPostgreSQLOrderRepository(db *sql.DB) *PostgreSQLOrderRepository {
	return &PostgreSQLOrderRepository{db: db}
}

// Create inserts an order. A second order for the same cart is a conflict.
func (r *PostgreSQLOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, r.db)

	linesJSON, shippingJSON, err := marshalOrder(order)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = querier.ExecContext(ctx, query, order.ID, order.UserID, order.CartID, string(order.Status),
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

// Update persists the status and payment references of an order.
func (r *PostgreSQLOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE orders
			  SET status = $1, checkout_session_id = $2, payment_intent_id = $3, updated_at = $4
			  WHERE id = $5`

	result, err := querier.ExecContext(ctx, query, string(order.Status), nullString(order.CheckoutSessionID),
		nullString(order.PaymentIntentID), order.UpdatedAt, order.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update order")
	}
	return requireOne(result, domain.ErrOrderNotFound)
}

// GetByID loads and locks an order.
func (r *PostgreSQLOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	return r.getOne(querier.QueryRowContext(ctx, query, id))
}

// GetByPaymentIntentID loads and locks the order paid through a payment intent.
func (r *PostgreSQLOrderRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_intent_id = $1 FOR UPDATE`

	return r.getOne(querier.QueryRowContext(ctx, query, paymentIntentID))
}

func (r *PostgreSQLOrderRepository) getOne(row *sql.Row) (*domain.Order, error) {
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order")
	}
	return order, nil
}
