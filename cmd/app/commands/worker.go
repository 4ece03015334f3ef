package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// RunWorker runs the outbox publisher and the reservation sweeper without the
// HTTP API, until SIGINT/SIGTERM.
func RunWorker(ctx context.Context, version string) error {
	container, err := NewContainer(ctx, version)
	if err != nil {
		return err
	}
	defer CloseContainer(container)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	outbox, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox publisher: %w", err)
	}

	reservations, err := container.ReservationUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize reservation sweeper: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runTasks(ctx, logger, backgroundTasks(outbox.Run, reservations.RunSweeper)...); err != nil {
		return err
	}

	logger.Info("worker stopped")
	return nil
}
