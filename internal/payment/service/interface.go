// Package service implements the payment provider adapters: the hosted
// checkout session gateway and the webhook signature verifier.
package service

import (
	"context"

	"github.com/allisson/checkout/internal/payment/domain"
)

// Gateway opens hosted checkout sessions at the payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (*domain.CheckoutSession, error)
}

// Verifier authenticates raw webhook payloads and normalizes them.
type Verifier interface {
	Parse(raw []byte, signatureHeader string) (*domain.EventEnvelope, error)
}
