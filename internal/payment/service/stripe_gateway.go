package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/payment/domain"
)

// StripeGatewayConfig configures the Stripe checkout gateway.
type StripeGatewayConfig struct {
	APIKey string
	// APIURL overrides the API base URL; empty uses Stripe's.
	APIURL          string
	Timeout         time.Duration
	ShippingRateIDs []string
}

// StripeGateway creates Stripe Checkout sessions.
type StripeGateway struct {
	api             *client.API
	timeout         time.Duration
	shippingRateIDs []string
	logger          *slog.Logger
}

// NewStripeGateway builds a gateway whose HTTP client is bounded by cfg.Timeout.
// Retries are left to the caller, which reuses the same idempotency key.
func NewStripeGateway(cfg StripeGatewayConfig, logger *slog.Logger) *StripeGateway {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	noRetries := int64(0)
	backendConfig := func(url string) *stripe.BackendConfig {
		c := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: &noRetries,
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		}
		if url != "" {
			c.URL = stripe.String(url)
		}
		return c
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig(cfg.APIURL)),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig(cfg.APIURL)),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig(cfg.APIURL)),
	}

	return &StripeGateway{
		api:             client.New(cfg.APIKey, backends),
		timeout:         cfg.Timeout,
		shippingRateIDs: cfg.ShippingRateIDs,
		logger:          logger,
	}
}

// CreateCheckoutSession opens a payment-mode Checkout session. The payment
// intent is expanded so its id is available immediately.
func (g *StripeGateway) CreateCheckoutSession(
	ctx context.Context,
	req domain.CheckoutSessionRequest,
) (*domain.CheckoutSession, error) {
	if len(req.LineItems) == 0 {
		return nil, apperrors.Wrap(domain.ErrInvalidCheckoutSession, "no line items")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(item.Currency)),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}
	for _, rateID := range g.shippingRateIDs {
		params.ShippingOptions = append(params.ShippingOptions, &stripe.CheckoutSessionShippingOptionParams{
			ShippingRate: stripe.String(rateID),
		})
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	params.AddExpand("payment_intent")
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		g.logger.Error("checkout session creation failed",
			slog.String("idempotency_key", req.IdempotencyKey),
			slog.Any("error", err),
		)
		return nil, mapStripeError(err)
	}

	result := &domain.CheckoutSession{
		SessionID: session.ID,
		URL:       session.URL,
	}
	if session.PaymentIntent != nil {
		result.PaymentIntentID = session.PaymentIntent.ID
	}
	return result, nil
}

// mapStripeError turns request errors into ErrInvalidInput and everything
// else (network, rate limit, provider outage) into ErrUnavailable.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if apperrors.As(err, &stripeErr) {
		status := stripeErr.HTTPStatusCode
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests &&
			status != http.StatusConflict {
			return apperrors.Wrap(domain.ErrInvalidCheckoutSession, stripeErr.Msg)
		}
	}
	return apperrors.Wrap(apperrors.ErrUnavailable, "payment provider: "+err.Error())
}
