package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	outboxUsecase "github.com/allisson/checkout/internal/outbox/usecase"
)

// OutboxPublisher runs one publish cycle.
type OutboxPublisher interface {
	PublishPending(ctx context.Context) (outboxUsecase.PublishResult, error)
}

// RunPublishOutbox runs a single outbox publish cycle and reports how many
// messages were delivered and how many failed.
func RunPublishOutbox(
	ctx context.Context,
	publisher OutboxPublisher,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("publishing pending outbox messages")

	result, err := publisher.PublishPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish outbox messages: %w", err)
	}

	logger.Info("outbox publish completed",
		slog.Int("published", result.Published),
		slog.Int("failed", result.Failed),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"published": result.Published,
			"failed":    result.Failed,
		})
	}

	_, err = fmt.Fprintf(writer, "Published %d message(s), %d failed\n", result.Published, result.Failed)
	return err
}
