package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
)

// OutboxStatter reports outbox backlog figures.
type OutboxStatter interface {
	Stats(ctx context.Context) (*outboxDomain.Stats, error)
}

// RunOutboxStats prints the unpublished backlog, the highest attempt count and
// the age of the oldest unpublished message.
func RunOutboxStats(ctx context.Context, statter OutboxStatter, writer io.Writer, format string) error {
	stats, err := statter.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read outbox stats: %w", err)
	}

	if format == "json" {
		result := map[string]any{
			"unpublished":  stats.Unpublished,
			"max_attempts": stats.MaxAttempts,
			"oldest_at":    nil,
		}
		if stats.OldestAt != nil {
			result["oldest_at"] = stats.OldestAt.UTC().Format(time.RFC3339)
		}
		return writeJSON(writer, result)
	}

	oldest := "-"
	if stats.OldestAt != nil {
		oldest = stats.OldestAt.UTC().Format(time.RFC3339)
	}
	_, err = fmt.Fprintf(writer, "Unpublished: %d\nMax attempts: %d\nOldest unpublished: %s\n",
		stats.Unpublished, stats.MaxAttempts, oldest)
	return err
}
