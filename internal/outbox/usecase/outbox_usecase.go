// Package usecase implements the outbox business logic: enqueuing messages
// inside a caller's transaction and relaying unpublished ones to the bus.
package usecase

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/allisson/checkout/internal/bus"
	"github.com/allisson/checkout/internal/database"
	"github.com/allisson/checkout/internal/metrics"
	"github.com/allisson/checkout/internal/outbox/domain"
)

// Config holds outbox use case configuration
type Config struct {
	Interval    time.Duration
	BatchSize   int
	SendTimeout time.Duration
}

// OutboxRepository defines outbox message repository operations
type OutboxRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	FindUnpublished(ctx context.Context, limit int) ([]*domain.Message, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*domain.Stats, error)
}

// Sender delivers one message to the bus.
type Sender interface {
	Send(ctx context.Context, msg bus.Message) error
}

// PublishResult counts the outcome of one publish cycle.
type PublishResult struct {
	Published int
	Failed    int
}

// UseCase defines the interface for outbox use cases
type UseCase interface {
	Enqueue(
		ctx context.Context,
		exchange, routingKey string,
		headers map[string]string,
		payload any,
	) (*domain.Message, error)
	EnqueueEvents(ctx context.Context, events []domain.Event) error
	FindUnpublished(ctx context.Context, limit int) ([]*domain.Message, error)
	PublishPending(ctx context.Context) (PublishResult, error)
	Run(ctx context.Context) error
	Stats(ctx context.Context) (*domain.Stats, error)
}

// OutboxUseCase implements the transactional outbox
type OutboxUseCase struct {
	config     Config
	txManager  database.TxManager
	outboxRepo OutboxRepository
	sender     Sender
	metrics    metrics.BusinessMetrics
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewOutboxUseCase creates a new OutboxUseCase
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxRepository,
	sender Sender,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *OutboxUseCase {
	return &OutboxUseCase{
		config:     config,
		txManager:  txManager,
		outboxRepo: outboxRepo,
		sender:     sender,
		metrics:    businessMetrics,
		logger:     logger,
		tracer:     otel.Tracer("github.com/allisson/checkout/internal/outbox"),
		now:        time.Now,
	}
}

// Enqueue appends a message to the outbox. It must run inside the caller's
// TxManager.WithTx so the row commits or rolls back with the state change it
// announces. The current trace context is stored in the headers.
func (uc *OutboxUseCase) Enqueue(
	ctx context.Context,
	exchange, routingKey string,
	headers map[string]string,
	payload any,
) (*domain.Message, error) {
	h := make(map[string]string, len(headers)+2)
	maps.Copy(h, headers)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(h))

	msg, err := domain.NewMessage(exchange, routingKey, h, payload)
	if err != nil {
		return nil, err
	}

	if err := uc.outboxRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// EnqueueEvents enqueues buffered aggregate events in order.
func (uc *OutboxUseCase) EnqueueEvents(ctx context.Context, events []domain.Event) error {
	for _, event := range events {
		var headers map[string]string
		if event.AggregateID != "" {
			headers = map[string]string{domain.HeaderAggregateID: event.AggregateID}
		}
		if _, err := uc.Enqueue(ctx, event.Exchange, event.RoutingKey, headers, event.Payload); err != nil {
			return err
		}
	}
	return nil
}

// FindUnpublished returns unpublished messages, oldest first.
func (uc *OutboxUseCase) FindUnpublished(ctx context.Context, limit int) ([]*domain.Message, error) {
	return uc.outboxRepo.FindUnpublished(ctx, limit)
}

// Stats returns the unpublished backlog summary.
func (uc *OutboxUseCase) Stats(ctx context.Context) (*domain.Stats, error) {
	return uc.outboxRepo.Stats(ctx)
}

// Run publishes pending messages every Interval until ctx is cancelled.
func (uc *OutboxUseCase) Run(ctx context.Context) error {
	uc.logger.Info("starting outbox publisher",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		uc.publishAndLog(ctx)

		select {
		case <-ctx.Done():
			uc.logger.Info("stopping outbox publisher")
			return nil
		case <-ticker.C:
		}
	}
}

func (uc *OutboxUseCase) publishAndLog(ctx context.Context) {
	result, err := uc.PublishPending(ctx)
	if err != nil {
		if ctx.Err() == nil {
			uc.logger.Error("failed to publish outbox messages", slog.Any("error", err))
		}
		return
	}
	if result.Published > 0 || result.Failed > 0 {
		uc.logger.Info("outbox publish cycle finished",
			slog.Int("published", result.Published),
			slog.Int("failed", result.Failed),
		)
	}
}

// PublishPending runs one publish cycle. Claimed rows are locked for the
// cycle's transaction. Each row is sent with its own timeout: a confirmed send
// sets published_at, a failed one adds exactly one attempt and leaves the row
// for the next cycle. A failing row never stops its siblings.
func (uc *OutboxUseCase) PublishPending(ctx context.Context) (PublishResult, error) {
	var result PublishResult

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		result = PublishResult{}

		messages, err := uc.outboxRepo.FindUnpublished(ctx, uc.config.BatchSize)
		if err != nil {
			return err
		}

		for _, msg := range messages {
			if sendErr := uc.send(ctx, msg); sendErr != nil {
				uc.logger.Warn("failed to send outbox message",
					slog.String("message_id", msg.ID.String()),
					slog.String("exchange", msg.Exchange),
					slog.String("routing_key", msg.RoutingKey),
					slog.Int("attempts", msg.Attempts+1),
					slog.Any("error", sendErr),
				)

				if err := uc.outboxRepo.IncrementAttempts(ctx, msg.ID); err != nil {
					return err
				}
				msg.RecordFailedAttempt()
				result.Failed++
				continue
			}

			at := uc.now().UTC()
			if err := uc.outboxRepo.MarkPublished(ctx, msg.ID, at); err != nil {
				return err
			}
			msg.MarkPublished(at)
			result.Published++
		}

		return nil
	})

	return result, err
}

func (uc *OutboxUseCase) send(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
	spanCtx, span := uc.tracer.Start(parent, "outbox.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Exchange),
			attribute.String("messaging.routing_key", msg.RoutingKey),
			attribute.String("messaging.message.id", msg.ID.String()),
		),
	)
	defer span.End()

	sendCtx, cancel := context.WithTimeout(spanCtx, uc.config.SendTimeout)
	defer cancel()

	err := uc.sender.Send(sendCtx, bus.Message{
		Exchange:   msg.Exchange,
		RoutingKey: msg.RoutingKey,
		Headers:    msg.Headers,
		Payload:    msg.Payload,
	})

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	uc.metrics.RecordOperation(ctx, "outbox", "publish", status)
	uc.metrics.RecordDuration(ctx, "outbox", "publish", time.Since(start), status)
	uc.metrics.RecordMessage(ctx, "publish", msg.Exchange, msg.RoutingKey, status)

	return err
}
