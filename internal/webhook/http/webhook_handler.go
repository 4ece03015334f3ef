// Package http provides the HTTP endpoint receiving payment provider webhooks.
package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/httputil"
	webhookUseCase "github.com/allisson/checkout/internal/webhook/usecase"
)

// SignatureHeader carries the provider's payload signature.
const SignatureHeader = "Stripe-Signature"

// maxPayloadBytes bounds the webhook body read into memory.
const maxPayloadBytes = 1 << 20

// StatusResponse is the body of every non-error webhook response.
type StatusResponse struct {
	Status string `json:"status"`
}

// WebhookHandler receives payment provider events.
type WebhookHandler struct {
	useCase webhookUseCase.WebhookUseCase
	source  string
	logger  *slog.Logger
}

// NewWebhookHandler creates a handler whose events are deduplicated under source.
func NewWebhookHandler(useCase webhookUseCase.WebhookUseCase, source string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{useCase: useCase, source: source, logger: logger}
}

// PaymentEventHandler processes one provider event.
// POST /v1/webhooks/payments
// Returns 200 "ok" for accepted and duplicate events, 200 "ignored" for events
// the business rules reject, 400 for signature failures and 5xx otherwise so
// the provider retries.
func (h *WebhookHandler) PaymentEventHandler(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	result, err := h.useCase.Process(c.Request.Context(), h.source, raw, c.GetHeader(SignatureHeader))
	switch {
	case err == nil:
		h.logger.Info("payment event accepted",
			slog.String("event_id", result.EventID),
			slog.String("type", result.Type),
			slog.Bool("duplicate", result.Duplicate),
		)
		c.JSON(http.StatusOK, StatusResponse{Status: "ok"})

	case apperrors.Is(err, apperrors.ErrInvalidInput),
		apperrors.Is(err, apperrors.ErrDomainState),
		apperrors.Is(err, apperrors.ErrNotFound):
		h.logger.Warn("payment event ignored", slog.Any("error", err))
		c.JSON(http.StatusOK, StatusResponse{Status: "ignored"})

	default:
		httputil.HandleErrorGin(c, err, h.logger)
	}
}
