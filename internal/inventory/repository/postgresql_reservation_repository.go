package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/inventory/domain"
)

// PostgreSQLReservationRepository handles reservation persistence for PostgreSQL
type PostgreSQLReservationRepository struct {
	db *sql.DB
}

// NewPostgreSQLReservationRepository creates a new PostgreSQLReservationRepository
func NewPostgreSQLReservationRepository(db *sql.DB) *PostgreSQLReservationRepository {
	return &PostgreSQLReservationRepository{db: db}
}

// Create inserts a reservation. A second reservation for the same order is a conflict.
func (r *PostgreSQLReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	querier := database.GetTx(ctx, r.db)

	itemsJSON, err := json.Marshal(reservation.Items)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal reservation items")
	}

	query := `INSERT INTO inventory_reservations (id, order_id, status, items_json, expires_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = querier.ExecContext(ctx, query, reservation.ID, reservation.OrderID, string(reservation.Status),
		itemsJSON, reservation.ExpiresAt, reservation.CreatedAt, reservation.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "reservation already exists for order")
		}
		return apperrors.Wrap(err, "failed to create reservation")
	}
	return nil
}

// Update persists the status of a reservation.
func (r *PostgreSQLReservationRepository) Update(ctx context.Context, reservation *domain.Reservation) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE inventory_reservations SET status = $1, updated_at = $2 WHERE id = $3`

	_, err := querier.ExecContext(ctx, query, string(reservation.Status), reservation.UpdatedAt, reservation.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update reservation")
	}
	return nil
}

// GetByOrderID loads and locks the reservation of an order.
func (r *PostgreSQLReservationRepository) GetByOrderID(
	ctx context.Context,
	orderID uuid.UUID,
) (*domain.Reservation, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, order_id, status, items_json, expires_at, created_at, updated_at
			  FROM inventory_reservations
			  WHERE order_id = $1
			  FOR UPDATE`

	reservation, err := scanReservation(querier.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get reservation")
	}
	return reservation, nil
}

// ListExpirable claims up to limit PENDING or RESERVED reservations whose
// expiry is at or before now.
func (r *PostgreSQLReservationRepository) ListExpirable(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.Reservation, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, order_id, status, items_json, expires_at, created_at, updated_at
			  FROM inventory_reservations
			  WHERE status IN ('PENDING', 'RESERVED') AND expires_at <= $1
			  ORDER BY expires_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expirable reservations")
	}
	defer rows.Close() //nolint:errcheck

	return scanReservations(rows)
}
