package usecase

import (
	"context"
	"time"

	"github.com/allisson/checkout/internal/metrics"
)

// checkoutUseCaseWithMetrics decorates CheckoutUseCase with metrics instrumentation.
type checkoutUseCaseWithMetrics struct {
	next    CheckoutUseCase
	metrics metrics.BusinessMetrics
}

// NewCheckoutUseCaseWithMetrics wraps a CheckoutUseCase with metrics recording.
func NewCheckoutUseCaseWithMetrics(useCase CheckoutUseCase, m metrics.BusinessMetrics) CheckoutUseCase {
	return &checkoutUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Execute records metrics for checkout operations.
func (c *checkoutUseCaseWithMetrics) Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	start := time.Now()
	result, err := c.next.Execute(ctx, input)

	status := "success"
	if err != nil {
		status = "error"
	}

	c.metrics.RecordOperation(ctx, "checkout", "checkout_execute", status)
	c.metrics.RecordDuration(ctx, "checkout", "checkout_execute", time.Since(start), status)

	return result, err
}

// orderPaymentUseCaseWithMetrics decorates OrderPaymentUseCase with metrics instrumentation.
type orderPaymentUseCaseWithMetrics struct {
	next    OrderPaymentUseCase
	metrics metrics.BusinessMetrics
}

// NewOrderPaymentUseCaseWithMetrics wraps an OrderPaymentUseCase with metrics recording.
func NewOrderPaymentUseCaseWithMetrics(useCase OrderPaymentUseCase, m metrics.BusinessMetrics) OrderPaymentUseCase {
	return &orderPaymentUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// ApplyPaymentEvent records metrics for payment status updates.
func (o *orderPaymentUseCaseWithMetrics) ApplyPaymentEvent(ctx context.Context, event PaymentEvent) error {
	start := time.Now()
	err := o.next.ApplyPaymentEvent(ctx, event)

	status := "success"
	if err != nil {
		status = "error"
	}

	o.metrics.RecordOperation(ctx, "checkout", "order_payment_apply", status)
	o.metrics.RecordDuration(ctx, "checkout", "order_payment_apply", time.Since(start), status)

	return err
}
