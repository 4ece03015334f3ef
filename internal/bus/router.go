package bus

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/metrics"
)

// ConsumerSourcePrefix prefixes the ledger source used by a named consumer.
const ConsumerSourcePrefix = "consumer:"

// Ledger is the idempotency store consulted before a message is dispatched.
type Ledger interface {
	AlreadyProcessed(ctx context.Context, source, key string) (bool, error)
	MarkProcessed(ctx context.Context, source, key string) error
}

type route struct {
	key     string
	prefix  bool
	handler Handler
}

func (r route) matches(routingKey string) bool {
	if r.prefix {
		return strings.HasPrefix(routingKey, r.key)
	}
	return r.key == routingKey
}

// Router dispatches messages to handlers by routing key. Each message is
// handled at most once per consumer: the handler and the ledger mark share a
// transaction, and a message id already in the ledger is skipped.
type Router struct {
	source    string
	ledger    Ledger
	txManager database.TxManager
	metrics   metrics.BusinessMetrics
	logger    *slog.Logger
	tracer    trace.Tracer
	routes    []route
}

// NewRouter creates a Router for the consumer named consumerName.
func NewRouter(
	consumerName string,
	ledger Ledger,
	txManager database.TxManager,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *Router {
	return &Router{
		source:    ConsumerSourcePrefix + consumerName,
		ledger:    ledger,
		txManager: txManager,
		metrics:   businessMetrics,
		logger:    logger,
		tracer:    otel.Tracer("github.com/allisson/checkout/internal/bus"),
	}
}

// Handle registers handler for an exact routing key.
func (r *Router) Handle(routingKey string, handler Handler) {
	r.routes = append(r.routes, route{key: routingKey, handler: handler})
}

// HandlePrefix registers handler for every routing key starting with prefix.
func (r *Router) HandlePrefix(prefix string, handler Handler) {
	r.routes = append(r.routes, route{key: prefix, prefix: true, handler: handler})
}

func (r *Router) lookup(routingKey string) (Handler, bool) {
	for _, rt := range r.routes {
		if rt.matches(routingKey) {
			return rt.handler, true
		}
	}
	return nil, false
}

// Dispatch is a Handler. Messages without a route are acknowledged and
// ignored. Business errors (invalid input, invalid state, not found) are
// logged and recorded as processed since redelivery cannot fix them; any other
// error is returned so the transport redelivers.
func (r *Router) Dispatch(ctx context.Context, msg Message) error {
	handler, ok := r.lookup(msg.RoutingKey)
	if !ok {
		r.logger.Debug("no route for message",
			slog.String("routing_key", msg.RoutingKey),
			slog.String("message_id", msg.ID()),
		)
		r.record(ctx, msg, "unrouted")
		return nil
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
	ctx, span := r.tracer.Start(ctx, "bus.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Exchange),
			attribute.String("messaging.routing_key", msg.RoutingKey),
			attribute.String("messaging.message.id", msg.ID()),
		),
	)
	defer span.End()

	messageID := msg.ID()
	if messageID == "" {
		return r.finish(ctx, span, msg, handler(ctx, msg))
	}

	duplicate := false
	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		duplicate = false
		processed, err := r.ledger.AlreadyProcessed(ctx, r.source, messageID)
		if err != nil {
			return err
		}
		if processed {
			r.logger.Debug("skipping duplicate message",
				slog.String("routing_key", msg.RoutingKey),
				slog.String("message_id", messageID),
			)
			duplicate = true
			return nil
		}

		if err := handler(ctx, msg); err != nil {
			return err
		}
		return r.ledger.MarkProcessed(ctx, r.source, messageID)
	})

	if isBusinessError(err) {
		if markErr := r.ledger.MarkProcessed(ctx, r.source, messageID); markErr != nil {
			return r.finish(ctx, span, msg, markErr)
		}
	}
	if err == nil && duplicate {
		r.record(ctx, msg, "duplicate")
		return nil
	}
	return r.finish(ctx, span, msg, err)
}

func (r *Router) finish(ctx context.Context, span trace.Span, msg Message, err error) error {
	if err == nil {
		r.record(ctx, msg, "success")
		return nil
	}

	if isBusinessError(err) {
		r.record(ctx, msg, "discarded")
		r.logger.WarnContext(ctx, "discarding message rejected by handler",
			slog.String("routing_key", msg.RoutingKey),
			slog.String("message_id", msg.ID()),
			slog.Any("error", err),
		)
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.record(ctx, msg, "error")
	return err
}

func (r *Router) record(ctx context.Context, msg Message, status string) {
	r.metrics.RecordMessage(ctx, "consume", msg.Exchange, msg.RoutingKey, status)
}

func isBusinessError(err error) bool {
	return apperrors.Is(err, apperrors.ErrInvalidInput) ||
		apperrors.Is(err, apperrors.ErrDomainState) ||
		apperrors.Is(err, apperrors.ErrNotFound)
}
