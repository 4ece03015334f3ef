// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/checkout/internal/validation"
)

// CheckoutRequest contains the parameters for starting a checkout.
type CheckoutRequest struct {
	CartID     string `json:"cart_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// Validate checks if the checkout request is valid.
func (r *CheckoutRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CartID, validation.Required, customValidation.UUIDString),
		validation.Field(&r.SuccessURL, validation.Required, customValidation.AbsoluteHTTPURL),
		validation.Field(&r.CancelURL, validation.Required, customValidation.AbsoluteHTTPURL),
	)
}
