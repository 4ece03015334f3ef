package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// ReservationExpirer releases reservations whose hold has lapsed.
type ReservationExpirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// RunExpireReservations runs one expiry sweep of at most limit reservations.
func RunExpireReservations(
	ctx context.Context,
	expirer ReservationExpirer,
	logger *slog.Logger,
	writer io.Writer,
	limit int,
	format string,
) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be a positive number, got: %d", limit)
	}

	logger.Info("expiring reservations", slog.Int("limit", limit))

	expired, err := expirer.ExpireDue(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to expire reservations: %w", err)
	}

	logger.Info("reservation expiry completed", slog.Int("expired", expired))

	if format == "json" {
		return writeJSON(writer, map[string]any{"expired": expired, "limit": limit})
	}

	_, err = fmt.Fprintf(writer, "Expired %d reservation(s)\n", expired)
	return err
}
