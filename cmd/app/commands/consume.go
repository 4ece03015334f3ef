package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/allisson/checkout/internal/bus"
)

// RunConsume subscribes to the configured exchanges and dispatches every
// message through the consumer router until SIGINT/SIGTERM.
func RunConsume(ctx context.Context, version string) error {
	container, err := NewContainer(ctx, version)
	if err != nil {
		return err
	}
	defer CloseContainer(container)

	cfg := container.Config()
	logger := container.Logger()
	logger.Info("starting consumer",
		slog.String("version", version),
		slog.String("consumer", cfg.BusConsumerName),
		slog.Any("topics", cfg.ConsumerTopics()),
	)

	router, err := container.Router()
	if err != nil {
		return fmt.Errorf("failed to initialize consumer router: %w", err)
	}

	subscriber, err := container.BusSubscriber()
	if err != nil {
		return fmt.Errorf("failed to initialize bus subscriber: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return consume(ctx, subscriber, router.Dispatch, logger)
}

// consume blocks on subscriber until ctx ends. A cancelled context is a clean stop.
func consume(ctx context.Context, subscriber bus.Subscriber, handler bus.Handler, logger *slog.Logger) error {
	if err := subscriber.Subscribe(ctx, handler); err != nil && ctx.Err() == nil {
		return fmt.Errorf("subscriber stopped: %w", err)
	}
	logger.Info("consumer stopped")
	return nil
}
