package service

import (
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/payment/domain"
)

// StripeVerifier checks the Stripe-Signature header and normalizes events.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewStripeVerifier creates a verifier for the given endpoint signing secret.
func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Parse verifies the signature and returns the normalized envelope. Any
// verification or decoding failure is ErrInvalidSignature.
func (v *StripeVerifier) Parse(raw []byte, signatureHeader string) (*domain.EventEnvelope, error) {
	if signatureHeader == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidSignature, "missing signature header")
	}

	event, err := webhook.ConstructEventWithOptions(raw, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidSignature, err.Error())
	}
	if event.ID == "" || event.Type == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidSignature, "event without id or type")
	}

	return &domain.EventEnvelope{
		ExternalID: event.ID,
		Type:       string(event.Type),
		OccurredAt: time.Unix(event.Created, 0).UTC(),
		Payload:    normalize(event),
	}, nil
}

// normalize extracts the ids the order workflow needs from the event object.
// Sessions carry the order in their metadata; payment intents and charges
// are matched through the payment intent id.
func normalize(event stripe.Event) map[string]any {
	payload := map[string]any{}
	if event.Data == nil || event.Data.Object == nil {
		return payload
	}
	object := event.Data.Object

	objectID, _ := object["id"].(string)
	if objectID != "" {
		payload[domain.FieldObjectID] = objectID
	}

	if metadata, ok := object["metadata"].(map[string]any); ok {
		if orderID, ok := metadata["order_id"].(string); ok && orderID != "" {
			payload[domain.FieldOrderID] = orderID
		}
		if cartID, ok := metadata["cart_id"].(string); ok && cartID != "" {
			payload[domain.FieldCartID] = cartID
		}
	}

	switch {
	case strings.HasPrefix(string(event.Type), "checkout.session."):
		payload[domain.FieldSessionID] = objectID
		payload[domain.FieldPaymentIntentID] = expandableID(object["payment_intent"])
		if amount, ok := object["amount_total"].(float64); ok {
			payload[domain.FieldAmount] = int64(amount)
		}
	case strings.HasPrefix(string(event.Type), "payment_intent."):
		payload[domain.FieldPaymentIntentID] = objectID
		if amount, ok := object["amount"].(float64); ok {
			payload[domain.FieldAmount] = int64(amount)
		}
	case strings.HasPrefix(string(event.Type), "charge."):
		payload[domain.FieldPaymentIntentID] = expandableID(object["payment_intent"])
		if amount, ok := object["amount_refunded"].(float64); ok {
			payload[domain.FieldAmount] = int64(amount)
		}
	}

	if currency, ok := object["currency"].(string); ok && currency != "" {
		payload[domain.FieldCurrency] = strings.ToUpper(currency)
	}
	if id, ok := payload[domain.FieldPaymentIntentID].(string); ok && id == "" {
		delete(payload, domain.FieldPaymentIntentID)
	}

	return payload
}

// expandableID reads an id from a field that is either a plain id or an
// expanded object.
func expandableID(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		id, _ := v["id"].(string)
		return id
	default:
		return ""
	}
}
