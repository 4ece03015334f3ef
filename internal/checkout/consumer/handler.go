// Package consumer applies payment events from the bus to orders.
package consumer

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/bus"
	"github.com/allisson/checkout/internal/checkout/usecase"
	apperrors "github.com/allisson/checkout/internal/errors"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
	paymentDomain "github.com/allisson/checkout/internal/payment/domain"
	webhookUseCase "github.com/allisson/checkout/internal/webhook/usecase"
)

// Handler turns payment.event.* messages into order status changes.
type Handler struct {
	payments usecase.OrderPaymentUseCase
}

// NewHandler creates a new Handler
func NewHandler(payments usecase.OrderPaymentUseCase) *Handler {
	return &Handler{payments: payments}
}

// Register adds the handler routes to router.
func (h *Handler) Register(router *bus.Router) {
	router.HandlePrefix(webhookUseCase.RoutingKeyPrefix, h.HandlePaymentEvent)
}

// HandlePaymentEvent decodes a normalized payment event and applies it.
// The provider event id comes from the aggregate_id header, falling back to
// the payload id.
func (h *Handler) HandlePaymentEvent(ctx context.Context, msg bus.Message) error {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "malformed payment event: "+err.Error())
	}

	event := usecase.PaymentEvent{
		EventID:         msg.Headers[outboxDomain.HeaderAggregateID],
		Type:            stringField(payload, paymentDomain.FieldType),
		PaymentIntentID: stringField(payload, paymentDomain.FieldPaymentIntentID),
	}
	if event.EventID == "" {
		event.EventID = stringField(payload, paymentDomain.FieldID)
	}

	if raw := stringField(payload, paymentDomain.FieldOrderID); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInvalidInput, "malformed order_id: "+raw)
		}
		event.OrderID = orderID
	}

	return h.payments.ApplyPaymentEvent(ctx, event)
}

func stringField(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return value
}
