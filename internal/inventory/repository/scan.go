package repository

import (
	"database/sql"
	"encoding/json"

	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/inventory/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// scanReservation reads one reservation row in the column order shared by both dialects.
func scanReservation(row rowScanner) (*domain.Reservation, error) {
	var (
		reservation domain.Reservation
		status      string
		itemsJSON   []byte
	)

	if err := row.Scan(&reservation.ID, &reservation.OrderID, &status, &itemsJSON,
		&reservation.ExpiresAt, &reservation.CreatedAt, &reservation.UpdatedAt); err != nil {
		return nil, err
	}

	reservation.Status = domain.ReservationStatus(status)
	if err := json.Unmarshal(itemsJSON, &reservation.Items); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal reservation items")
	}

	return &reservation, nil
}

func scanReservations(rows *sql.Rows) ([]*domain.Reservation, error) {
	var reservations []*domain.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan reservation")
		}
		reservations = append(reservations, reservation)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reservations, nil
}
