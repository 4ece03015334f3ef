package commands

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Task is a named loop that runs until its context is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// runTasks runs every task concurrently. The first task to fail cancels the
// others; the returned error is that first failure.
func runTasks(ctx context.Context, logger *slog.Logger, tasks ...Task) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		g.Go(func() error {
			logger.Debug("task started", slog.String("task", task.Name))
			if err := task.Run(ctx); err != nil {
				return fmt.Errorf("%s: %w", task.Name, err)
			}
			logger.Debug("task stopped", slog.String("task", task.Name))
			return nil
		})
	}

	return g.Wait()
}

// backgroundTasks returns the outbox publisher and reservation sweeper tasks.
func backgroundTasks(publisher, sweeper func(ctx context.Context) error) []Task {
	return []Task{
		{Name: "outbox publisher", Run: publisher},
		{Name: "reservation sweeper", Run: sweeper},
	}
}

// serveTask runs a server until ctx ends, then shuts it down gracefully
// within shutdownTimeout.
func serveTask(
	name string,
	start func(ctx context.Context) error,
	shutdown func(ctx context.Context) error,
	shutdownTimeout func() (context.Context, context.CancelFunc),
) Task {
	return Task{
		Name: name,
		Run: func(ctx context.Context) error {
			errCh := make(chan error, 1)
			go func() { errCh <- start(ctx) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := shutdownTimeout()
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errCh
		},
	}
}
