// Package http provides the HTTP endpoint starting a checkout.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/checkout/http/dto"
	checkoutUseCase "github.com/allisson/checkout/internal/checkout/usecase"
	"github.com/allisson/checkout/internal/httputil"
	customValidation "github.com/allisson/checkout/internal/validation"
)

// UserIDHeader carries the authenticated caller's id, set by the upstream
// authentication layer.
const UserIDHeader = "X-User-ID"

// CheckoutHandler handles checkout requests.
type CheckoutHandler struct {
	checkoutUseCase checkoutUseCase.CheckoutUseCase
	logger          *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler with required dependencies.
func NewCheckoutHandler(useCase checkoutUseCase.CheckoutUseCase, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkoutUseCase: useCase, logger: logger}
}

// CheckoutHandler converts the caller's cart into an order and opens a payment session.
// POST /v1/checkout
// Returns 201 Created with the order id and the hosted payment page URL.
func (h *CheckoutHandler) CheckoutHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.GetHeader(UserIDHeader))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid %s header", UserIDHeader), h.logger)
		return
	}

	var req dto.CheckoutRequest

	// Parse and bind JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.checkoutUseCase.Execute(c.Request.Context(), checkoutUseCase.CheckoutInput{
		CartID:     uuid.MustParse(req.CartID),
		UserID:     userID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapCheckoutResultToResponse(result))
}
