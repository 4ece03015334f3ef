package dto

import (
	checkoutUseCase "github.com/allisson/checkout/internal/checkout/usecase"
)

// CheckoutResponse tells the client where to redirect the buyer.
type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// MapCheckoutResultToResponse converts a checkout result to an API response.
func MapCheckoutResultToResponse(result *checkoutUseCase.CheckoutResult) CheckoutResponse {
	return CheckoutResponse{
		OrderID:     result.OrderID.String(),
		SessionID:   result.SessionID,
		CheckoutURL: result.CheckoutURL,
	}
}
