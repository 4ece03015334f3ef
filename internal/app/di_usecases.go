package app

import (
	"fmt"

	auditUsecase "github.com/allisson/checkout/internal/audit/usecase"
	checkoutHTTP "github.com/allisson/checkout/internal/checkout/http"
	checkoutUsecase "github.com/allisson/checkout/internal/checkout/usecase"
	inventoryUsecase "github.com/allisson/checkout/internal/inventory/usecase"
	ledgerDomain "github.com/allisson/checkout/internal/ledger/domain"
	ledgerUsecase "github.com/allisson/checkout/internal/ledger/usecase"
	outboxUsecase "github.com/allisson/checkout/internal/outbox/usecase"
	paymentService "github.com/allisson/checkout/internal/payment/service"
	webhookHTTP "github.com/allisson/checkout/internal/webhook/http"
	webhookUsecase "github.com/allisson/checkout/internal/webhook/usecase"
)

// OutboxUseCase returns the outbox use case used to enqueue and relay messages.
func (c *Container) OutboxUseCase() (outboxUsecase.UseCase, error) {
	var err error
	c.outboxUseCaseInit.Do(func() {
		c.outboxUseCase, err = c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxUseCase, nil
}

// LedgerUseCase returns the processed-event ledger.
func (c *Container) LedgerUseCase() (ledgerUsecase.UseCase, error) {
	var err error
	c.ledgerUseCaseInit.Do(func() {
		c.ledgerUseCase, err = c.initLedgerUseCase()
		if err != nil {
			c.initErrors["ledgerUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["ledgerUseCase"]; exists {
		return nil, storedErr
	}
	return c.ledgerUseCase, nil
}

// AuditRecorder returns the audit recorder.
func (c *Container) AuditRecorder() (auditUsecase.AuditRecorder, error) {
	var err error
	c.auditRecorderInit.Do(func() {
		c.auditRecorder, err = c.initAuditRecorder()
		if err != nil {
			c.initErrors["auditRecorder"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditRecorder"]; exists {
		return nil, storedErr
	}
	return c.auditRecorder, nil
}

// ReservationUseCase returns the inventory reservation use case.
func (c *Container) ReservationUseCase() (inventoryUsecase.ReservationUseCase, error) {
	var err error
	c.reservationUseCaseInit.Do(func() {
		c.reservationUseCase, err = c.initReservationUseCase()
		if err != nil {
			c.initErrors["reservationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["reservationUseCase"]; exists {
		return nil, storedErr
	}
	return c.reservationUseCase, nil
}

// PaymentGateway returns the payment provider checkout gateway.
func (c *Container) PaymentGateway() (paymentService.Gateway, error) {
	var err error
	c.paymentGatewayInit.Do(func() {
		c.paymentGateway, err = c.initPaymentGateway()
		if err != nil {
			c.initErrors["paymentGateway"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["paymentGateway"]; exists {
		return nil, storedErr
	}
	return c.paymentGateway, nil
}

// PaymentVerifier returns the webhook signature verifier.
func (c *Container) PaymentVerifier() (paymentService.Verifier, error) {
	var err error
	c.paymentVerifierInit.Do(func() {
		c.paymentVerifier, err = c.initPaymentVerifier()
		if err != nil {
			c.initErrors["paymentVerifier"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["paymentVerifier"]; exists {
		return nil, storedErr
	}
	return c.paymentVerifier, nil
}

// CheckoutUseCase returns the checkout use case wrapped with metrics.
func (c *Container) CheckoutUseCase() (checkoutUsecase.CheckoutUseCase, error) {
	var err error
	c.checkoutUseCaseInit.Do(func() {
		c.checkoutUseCase, err = c.initCheckoutUseCase()
		if err != nil {
			c.initErrors["checkoutUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["checkoutUseCase"]; exists {
		return nil, storedErr
	}
	return c.checkoutUseCase, nil
}

// OrderPaymentUseCase returns the use case applying payment outcomes to orders.
func (c *Container) OrderPaymentUseCase() (checkoutUsecase.OrderPaymentUseCase, error) {
	var err error
	c.orderPaymentUseCaseInit.Do(func() {
		c.orderPaymentUseCase, err = c.initOrderPaymentUseCase()
		if err != nil {
			c.initErrors["orderPaymentUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orderPaymentUseCase"]; exists {
		return nil, storedErr
	}
	return c.orderPaymentUseCase, nil
}

// WebhookUseCase returns the payment webhook use case wrapped with metrics.
func (c *Container) WebhookUseCase() (webhookUsecase.WebhookUseCase, error) {
	var err error
	c.webhookUseCaseInit.Do(func() {
		c.webhookUseCase, err = c.initWebhookUseCase()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["webhookUseCase"]; exists {
		return nil, storedErr
	}
	return c.webhookUseCase, nil
}

// CheckoutHandler returns the HTTP handler for checkout.
func (c *Container) CheckoutHandler() (*checkoutHTTP.CheckoutHandler, error) {
	useCase, err := c.CheckoutUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout use case for checkout handler: %w", err)
	}
	return checkoutHTTP.NewCheckoutHandler(useCase, c.Logger()), nil
}

// WebhookHandler returns the HTTP handler for payment provider webhooks.
func (c *Container) WebhookHandler() (*webhookHTTP.WebhookHandler, error) {
	useCase, err := c.WebhookUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook use case for webhook handler: %w", err)
	}
	return webhookHTTP.NewWebhookHandler(useCase, ledgerDomain.SourcePayments, c.Logger()), nil
}

// initOutboxUseCase creates the outbox use case.
func (c *Container) initOutboxUseCase() (outboxUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	repo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	sender, err := c.BusSender()
	if err != nil {
		return nil, fmt.Errorf("failed to get bus sender for outbox use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for outbox use case: %w", err)
	}

	return outboxUsecase.NewOutboxUseCase(
		outboxUsecase.Config{
			Interval:    c.config.OutboxPublishInterval,
			BatchSize:   c.config.OutboxBatchSize,
			SendTimeout: c.config.BusSendTimeout,
		},
		txManager,
		repo,
		sender,
		businessMetrics,
		c.Logger(),
	), nil
}

// initLedgerUseCase creates the ledger use case.
func (c *Container) initLedgerUseCase() (ledgerUsecase.UseCase, error) {
	repo, err := c.LedgerRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger repository for ledger use case: %w", err)
	}
	return ledgerUsecase.NewLedgerUseCase(repo), nil
}

// initAuditRecorder creates the audit recorder.
func (c *Container) initAuditRecorder() (auditUsecase.AuditRecorder, error) {
	repo, err := c.AuditEventRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit event repository for audit recorder: %w", err)
	}
	return auditUsecase.NewAuditRecorder(repo), nil
}

// initReservationUseCase creates the reservation use case.
func (c *Container) initReservationUseCase() (inventoryUsecase.ReservationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for reservation use case: %w", err)
	}

	stock, err := c.StockRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get stock repository for reservation use case: %w", err)
	}

	reservations, err := c.ReservationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation repository for reservation use case: %w", err)
	}

	outbox, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for reservation use case: %w", err)
	}

	ledger, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for reservation use case: %w", err)
	}

	return inventoryUsecase.NewReservationUseCase(
		inventoryUsecase.Config{
			TTL:           c.config.ReservationTTL,
			SweepInterval: c.config.ReservationSweepInterval,
			SweepBatch:    c.config.ReservationSweepBatch,
		},
		txManager,
		stock,
		reservations,
		outbox,
		ledger,
		c.Logger(),
	), nil
}

// initPaymentGateway creates the Stripe checkout gateway.
func (c *Container) initPaymentGateway() (paymentService.Gateway, error) {
	if c.config.PaymentAPIKey == "" {
		return nil, fmt.Errorf("payment api key is not configured")
	}
	return paymentService.NewStripeGateway(paymentService.StripeGatewayConfig{
		APIKey:          c.config.PaymentAPIKey,
		APIURL:          c.config.PaymentAPIURL,
		Timeout:         c.config.PaymentTimeout,
		ShippingRateIDs: c.config.ShippingRateIDs(),
	}, c.Logger()), nil
}

// initPaymentVerifier creates the Stripe webhook verifier.
func (c *Container) initPaymentVerifier() (paymentService.Verifier, error) {
	if c.config.PaymentWebhookSecret == "" {
		return nil, fmt.Errorf("payment webhook secret is not configured")
	}
	return paymentService.NewStripeVerifier(c.config.PaymentWebhookSecret), nil
}

// initCheckoutUseCase creates the checkout use case with all its dependencies.
func (c *Container) initCheckoutUseCase() (checkoutUsecase.CheckoutUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for checkout use case: %w", err)
	}

	carts, err := c.CartRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get cart repository for checkout use case: %w", err)
	}

	orders, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for checkout use case: %w", err)
	}

	prices, err := c.PriceRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get price repository for checkout use case: %w", err)
	}

	gateway, err := c.PaymentGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to get payment gateway for checkout use case: %w", err)
	}

	outbox, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for checkout use case: %w", err)
	}

	audit, err := c.AuditRecorder()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit recorder for checkout use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for checkout use case: %w", err)
	}

	useCase := checkoutUsecase.NewCheckoutUseCase(
		checkoutUsecase.Config{
			ReservationTTL: c.config.ReservationTTL,
			PaymentTimeout: c.config.PaymentTimeout,
		},
		txManager,
		carts,
		orders,
		prices,
		gateway,
		outbox,
		audit,
		c.Logger(),
	)
	return checkoutUsecase.NewCheckoutUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initOrderPaymentUseCase creates the order payment use case.
func (c *Container) initOrderPaymentUseCase() (checkoutUsecase.OrderPaymentUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for order payment use case: %w", err)
	}

	orders, err := c.OrderRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get order repository for order payment use case: %w", err)
	}

	ledger, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for order payment use case: %w", err)
	}

	outbox, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for order payment use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for order payment use case: %w", err)
	}

	useCase := checkoutUsecase.NewOrderPaymentUseCase(txManager, orders, ledger, outbox, c.Logger())
	return checkoutUsecase.NewOrderPaymentUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initWebhookUseCase creates the webhook use case.
func (c *Container) initWebhookUseCase() (webhookUsecase.WebhookUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for webhook use case: %w", err)
	}

	verifier, err := c.PaymentVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get payment verifier for webhook use case: %w", err)
	}

	ledger, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for webhook use case: %w", err)
	}

	outbox, err := c.OutboxUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox use case for webhook use case: %w", err)
	}

	audit, err := c.AuditRecorder()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit recorder for webhook use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for webhook use case: %w", err)
	}

	useCase := webhookUsecase.NewWebhookUseCase(txManager, verifier, ledger, outbox, audit, c.Logger())
	return webhookUsecase.NewWebhookUseCaseWithMetrics(useCase, businessMetrics), nil
}
