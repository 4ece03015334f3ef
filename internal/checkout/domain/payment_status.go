package domain

import (
	paymentDomain "github.com/allisson/checkout/internal/payment/domain"
)

var paymentEventStatuses = map[string]OrderStatus{
	paymentDomain.EventCheckoutSessionCompleted:          OrderPaid,
	paymentDomain.EventPaymentIntentSucceeded:            OrderPaid,
	paymentDomain.EventPaymentIntentPaymentFailed:        OrderPaymentFailed,
	paymentDomain.EventCheckoutSessionAsyncPaymentFailed: OrderPaymentFailed,
	paymentDomain.EventCheckoutSessionExpired:            OrderCancelled,
	paymentDomain.EventChargeRefunded:                    OrderRefunded,
}

// StatusForPaymentEvent maps a provider event type to the order status it
// implies. Unknown types report false.
func StatusForPaymentEvent(eventType string) (OrderStatus, bool) {
	status, ok := paymentEventStatuses[eventType]
	return status, ok
}
