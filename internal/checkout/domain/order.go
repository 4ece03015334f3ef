package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/checkout/internal/errors"
	inventoryDomain "github.com/allisson/checkout/internal/inventory/domain"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
)

// ExchangeOrders is the bus exchange of order events.
const ExchangeOrders = "orders"

// Routing keys of order events.
const (
	RoutingKeyCheckoutStarted = "order.checkout.started"
	RoutingKeyPaid            = "order.paid"
	RoutingKeyPaymentFailed   = "order.payment_failed"
	RoutingKeyCancelled       = "order.cancelled"
	RoutingKeyRefunded        = "order.refunded"
)

// OrderStatus is the payment lifecycle state of an order.
type OrderStatus string

// Order statuses.
const (
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderPaid           OrderStatus = "PAID"
	OrderPaymentFailed  OrderStatus = "PAYMENT_FAILED"
	OrderRefunded       OrderStatus = "REFUNDED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPendingPayment: {OrderPaid, OrderPaymentFailed, OrderCancelled},
	OrderPaymentFailed:  {OrderPaid, OrderCancelled},
	OrderPaid:           {OrderRefunded},
}

var statusRoutingKeys = map[OrderStatus]string{
	OrderPaid:          RoutingKeyPaid,
	OrderPaymentFailed: RoutingKeyPaymentFailed,
	OrderCancelled:     RoutingKeyCancelled,
	OrderRefunded:      RoutingKeyRefunded,
}

// CanTransitionTo reports whether the order may move from s to target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Order errors.
var (
	ErrOrderNotFound          = apperrors.Wrap(apperrors.ErrNotFound, "order not found")
	ErrInvalidOrderTransition = apperrors.Wrap(apperrors.ErrDomainState, "invalid order transition")
	ErrPriceNotFound          = apperrors.Wrap(apperrors.ErrNotFound, "variant price not found")
)

// orderNamespace scopes order ids derived from cart ids.
var orderNamespace = uuid.MustParse("6f1c1a9e-7a55-4d0b-9a0c-3f0e6f7c2b11")

// OrderIDForCart derives the order id of a cart checkout. A retried checkout
// of the same cart gets the same id, and with it the same idempotency key.
func OrderIDForCart(cartID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(orderNamespace, cartID[:])
}

// IdempotencyKey is the key sent to the payment provider for an order.
func IdempotencyKey(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

// OrderLine is a priced snapshot of a cart item.
type OrderLine struct {
	VariantID uuid.UUID `json:"variant_id"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
}

// Order is created from a cart at checkout and follows the payment outcome.
type Order struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	CartID            uuid.UUID
	Lines             []OrderLine
	Total             Money
	Status            OrderStatus
	Shipping          *Address
	CheckoutSessionID string
	PaymentIntentID   string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	events []outboxDomain.Event
}

// NewPendingOrder prices cart against prices and builds an order awaiting
// payment. Every line must share one currency.
func NewPendingOrder(cart *Cart, prices map[uuid.UUID]VariantPrice, now time.Time) (*Order, error) {
	if err := cart.EnsureCheckoutable(); err != nil {
		return nil, err
	}

	var total Money
	lines := make([]OrderLine, 0, len(cart.Items))
	for i, item := range cart.Items {
		price, ok := prices[item.VariantID]
		if !ok {
			return nil, apperrors.Wrap(ErrPriceNotFound, item.VariantID.String())
		}
		if item.Quantity <= 0 {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput,
				fmt.Sprintf("quantity must be positive, got %d", item.Quantity))
		}

		lineTotal, err := price.Price.Times(item.Quantity)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			total = Zero(lineTotal.Currency)
		}
		sum, err := total.Add(lineTotal)
		if err != nil {
			return nil, err
		}
		total = sum

		lines = append(lines, OrderLine{
			VariantID: item.VariantID,
			Name:      price.Name,
			UnitPrice: price.Price.Amount,
			Quantity:  item.Quantity,
		})
	}

	now = now.UTC()
	return &Order{
		ID:        OrderIDForCart(cart.ID),
		UserID:    cart.UserID,
		CartID:    cart.ID,
		Lines:     lines,
		Total:     total,
		Status:    OrderPendingPayment,
		Shipping:  cart.ShippingAddress,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StartCheckout records the payment session and announces the checkout: one
// order.checkout.started event and one inventory reserve request holding the
// lines until reservationExpiresAt.
func (o *Order) StartCheckout(sessionID, paymentIntentID string, reservationExpiresAt, now time.Time) error {
	if o.Status != OrderPendingPayment {
		return apperrors.Wrap(ErrInvalidOrderTransition, fmt.Sprintf("cannot start checkout of a %s order", o.Status))
	}

	o.CheckoutSessionID = sessionID
	o.PaymentIntentID = paymentIntentID
	o.UpdatedAt = now.UTC()

	items := make([]inventoryDomain.ReservationItem, 0, len(o.Lines))
	for _, line := range o.Lines {
		item, err := inventoryDomain.NewReservationItem(line.VariantID, line.Quantity)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	o.events = append(o.events,
		outboxDomain.Event{
			Exchange:    ExchangeOrders,
			RoutingKey:  RoutingKeyCheckoutStarted,
			AggregateID: o.ID.String(),
			Payload: CheckoutStartedEvent{
				OrderID:         o.ID,
				SessionID:       sessionID,
				PaymentIntentID: paymentIntentID,
				Total:           o.Total.Decimal(),
				Currency:        o.Total.Currency,
			},
		},
		outboxDomain.Event{
			Exchange:    inventoryDomain.ExchangeInventory,
			RoutingKey:  inventoryDomain.RoutingKeyReserveRequest,
			AggregateID: o.ID.String(),
			Payload: inventoryDomain.ReserveRequest{
				OrderID:   o.ID,
				Items:     items,
				ExpiresAt: reservationExpiresAt.UTC(),
			},
		},
	)
	return nil
}

// ApplyPaymentStatus moves the order to target on behalf of the payment
// event paymentEventID. It returns false without error when the order is
// already in target.
func (o *Order) ApplyPaymentStatus(target OrderStatus, paymentEventID string, now time.Time) (bool, error) {
	if o.Status == target {
		return false, nil
	}
	if !o.Status.CanTransitionTo(target) {
		return false, apperrors.Wrap(ErrInvalidOrderTransition,
			fmt.Sprintf("cannot move a %s order to %s", o.Status, target))
	}

	o.Status = target
	o.UpdatedAt = now.UTC()
	o.events = append(o.events, outboxDomain.Event{
		Exchange:    ExchangeOrders,
		RoutingKey:  statusRoutingKeys[target],
		AggregateID: o.ID.String(),
		Payload: OrderStatusEvent{
			OrderID:         o.ID,
			Status:          target,
			PaymentEventID:  paymentEventID,
			PaymentIntentID: o.PaymentIntentID,
			OccurredAt:      o.UpdatedAt,
		},
	})
	return true, nil
}

// PullEvents returns the buffered events and clears the buffer.
func (o *Order) PullEvents() []outboxDomain.Event {
	events := o.events
	o.events = nil
	return events
}

// CheckoutStartedEvent is the payload of order.checkout.started.
type CheckoutStartedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	SessionID       string    `json:"session_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Total           string    `json:"total"`
	Currency        string    `json:"currency"`
}

// OrderStatusEvent is the payload of order status change events.
type OrderStatusEvent struct {
	OrderID         uuid.UUID   `json:"order_id"`
	Status          OrderStatus `json:"status"`
	PaymentEventID  string      `json:"payment_event_id"`
	PaymentIntentID string      `json:"payment_intent_id,omitempty"`
	OccurredAt      time.Time   `json:"occurred_at"`
}
