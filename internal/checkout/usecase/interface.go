// Package usecase implements the checkout orchestrator and the order
// payment-status workflow.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/checkout/domain"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
	paymentDomain "github.com/allisson/checkout/internal/payment/domain"
)

// CartRepository loads and updates carts.
type CartRepository interface {
	GetForUser(ctx context.Context, cartID, userID uuid.UUID) (*domain.Cart, error)
	UpdateStatus(ctx context.Context, cart *domain.Cart) error
}

// OrderRepository persists orders.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Order, error)
}

// VariantPriceReader reads current catalog prices.
type VariantPriceReader interface {
	ListPrices(ctx context.Context, variantIDs []uuid.UUID) (map[uuid.UUID]domain.VariantPrice, error)
}

// PaymentGateway opens hosted payment sessions.
type PaymentGateway interface {
	CreateCheckoutSession(
		ctx context.Context,
		req paymentDomain.CheckoutSessionRequest,
	) (*paymentDomain.CheckoutSession, error)
}

// OutboxStore appends aggregate events inside the caller's transaction.
type OutboxStore interface {
	EnqueueEvents(ctx context.Context, events []outboxDomain.Event) error
}

// AuditRecorder records audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, userID *uuid.UUID, eventType string, metadata map[string]any, at time.Time) error
}

// EventLedger answers whether an external event was accepted.
type EventLedger interface {
	AlreadyProcessed(ctx context.Context, source, key string) (bool, error)
}

// CheckoutInput starts a checkout of CartID on behalf of UserID.
type CheckoutInput struct {
	CartID     uuid.UUID
	UserID     uuid.UUID
	SuccessURL string
	CancelURL  string
}

// CheckoutResult tells the caller where to send the buyer.
type CheckoutResult struct {
	OrderID     uuid.UUID
	SessionID   string
	CheckoutURL string
}

// PaymentEvent is a normalized provider event read from the payments exchange.
type PaymentEvent struct {
	EventID         string
	Type            string
	OrderID         uuid.UUID
	PaymentIntentID string
}

// CheckoutUseCase converts a cart into an order awaiting payment.
type CheckoutUseCase interface {
	Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
}

// OrderPaymentUseCase moves orders along with payment outcomes.
type OrderPaymentUseCase interface {
	ApplyPaymentEvent(ctx context.Context, event PaymentEvent) error
}
