// Package domain defines the payment provider types shared by the checkout
// orchestrator and the inbound webhook gateway.
package domain

import (
	"time"

	apperrors "github.com/allisson/checkout/internal/errors"
)

// Provider event types the order workflow reacts to.
const (
	EventCheckoutSessionCompleted          = "checkout.session.completed"
	EventCheckoutSessionExpired            = "checkout.session.expired"
	EventCheckoutSessionAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventPaymentIntentSucceeded            = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed        = "payment_intent.payment_failed"
	EventChargeRefunded                    = "charge.refunded"
)

// Normalized payload field names.
const (
	FieldID              = "id"
	FieldType            = "type"
	FieldOccurredAt      = "occurred_at"
	FieldObjectID        = "object_id"
	FieldOrderID         = "order_id"
	FieldCartID          = "cart_id"
	FieldSessionID       = "session_id"
	FieldPaymentIntentID = "payment_intent_id"
	FieldAmount          = "amount"
	FieldCurrency        = "currency"
)

// ErrInvalidCheckoutSession is returned for session requests the provider cannot accept.
var ErrInvalidCheckoutSession = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid checkout session request")

// EventEnvelope is a verified provider event reduced to the fields the
// system needs. It is never persisted as is.
type EventEnvelope struct {
	ExternalID string
	Type       string
	OccurredAt time.Time
	Payload    map[string]any
}

// LineItem is one priced line of a hosted checkout session.
type LineItem struct {
	Name       string
	UnitAmount int64
	Currency   string
	Quantity   int64
}

// CheckoutSessionRequest describes the hosted payment page to open.
type CheckoutSessionRequest struct {
	LineItems      []LineItem
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	// ClientReferenceID ties the session back to the order.
	ClientReferenceID string
}

// CheckoutSession is the provider's answer to CheckoutSessionRequest.
type CheckoutSession struct {
	SessionID       string
	PaymentIntentID string
	URL             string
}
