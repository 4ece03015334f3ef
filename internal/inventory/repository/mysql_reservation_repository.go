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

// MySQLReservationRepository handles reservation persistence for MySQL
type MySQLReservationRepository struct {
	db *sql.DB
}

// NewMySQLReservationRepository creates a new MySQLReservationRepository
func NewMySQLReservationRepository(db *sql.DB) *MySQLReservationRepository {
	return &MySQLReservationRepository{db: db}
}

// Create inserts a reservation. A second reservation for the same order is a conflict.
func (r *MySQLReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	querier := database.GetTx(ctx, r.db)

	id, err := reservation.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal reservation id")
	}
	orderID, err := reservation.OrderID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal order id")
	}
	itemsJSON, err := json.Marshal(reservation.Items)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal reservation items")
	}

	query := `INSERT INTO inventory_reservations (id, order_id, status, items_json, expires_at, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, id, orderID, string(reservation.Status),
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
func (r *MySQLReservationRepository) Update(ctx context.Context, reservation *domain.Reservation) error {
	querier := database.GetTx(ctx, r.db)

	id, err := reservation.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal reservation id")
	}

	query := `UPDATE inventory_reservations SET status = ?, updated_at = ? WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, string(reservation.Status), reservation.UpdatedAt, id); err != nil {
		return apperrors.Wrap(err, "failed to update reservation")
	}
	return nil
}

// GetByOrderID loads and locks the reservation of an order.
func (r *MySQLReservationRepository) GetByOrderID(
	ctx context.Context,
	orderID uuid.UUID,
) (*domain.Reservation, error) {
	querier := database.GetTx(ctx, r.db)

	id, err := orderID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal order id")
	}

	query := `SELECT id, order_id, status, items_json, expires_at, created_at, updated_at
			  FROM inventory_reservations
			  WHERE order_id = ?
			  FOR UPDATE`

	reservation, err := scanReservation(querier.QueryRowContext(ctx, query, id))
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
func (r *MySQLReservationRepository) ListExpirable(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.Reservation, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, order_id, status, items_json, expires_at, created_at, updated_at
			  FROM inventory_reservations
			  WHERE status IN ('PENDING', 'RESERVED') AND expires_at <= ?
			  ORDER BY expires_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expirable reservations")
	}
	defer rows.Close() //nolint:errcheck

	return scanReservations(rows)
}
