package usecase

import (
	"context"
	"time"

	"github.com/allisson/checkout/internal/metrics"
)

// webhookUseCaseWithMetrics decorates WebhookUseCase with metrics instrumentation.
type webhookUseCaseWithMetrics struct {
	next    WebhookUseCase
	metrics metrics.BusinessMetrics
}

// NewWebhookUseCaseWithMetrics wraps a WebhookUseCase with metrics recording.
func NewWebhookUseCaseWithMetrics(useCase WebhookUseCase, m metrics.BusinessMetrics) WebhookUseCase {
	return &webhookUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Process records metrics for inbound payment events. Duplicates are counted
// under their own status.
func (w *webhookUseCaseWithMetrics) Process(
	ctx context.Context,
	source string,
	raw []byte,
	signature string,
) (*Result, error) {
	start := time.Now()
	result, err := w.next.Process(ctx, source, raw, signature)

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case result.Duplicate:
		status = "duplicate"
	}

	w.metrics.RecordOperation(ctx, "webhook", "payment_event_process", status)
	w.metrics.RecordDuration(ctx, "webhook", "payment_event_process", time.Since(start), status)

	return result, err
}
