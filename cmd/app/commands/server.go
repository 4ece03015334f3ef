package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// RunServer starts the HTTP API together with the metrics server, the outbox
// publisher and the reservation sweeper. It blocks until SIGINT/SIGTERM or
// until one of them fails; the servers are then given DBConnMaxLifetime to
// drain.
func RunServer(ctx context.Context, version string) error {
	container, err := NewContainer(ctx, version)
	if err != nil {
		return err
	}
	defer CloseContainer(container)

	cfg := container.Config()
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

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

	shutdownTimeout := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
	}

	tasks := []Task{serveTask("api server", server.Start, server.Shutdown, shutdownTimeout)}
	if metricsServer != nil {
		tasks = append(tasks, serveTask("metrics server", metricsServer.Start, metricsServer.Shutdown, shutdownTimeout))
	}
	tasks = append(tasks, backgroundTasks(outbox.Run, reservations.RunSweeper)...)

	if err := runTasks(ctx, logger, tasks...); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
