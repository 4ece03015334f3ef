package usecase

import (
	"context"
	"log/slog"
	"time"

	validation "github.com/jellydator/validation"

	auditDomain "github.com/allisson/checkout/internal/audit/domain"
	"github.com/allisson/checkout/internal/checkout/domain"
	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
	paymentDomain "github.com/allisson/checkout/internal/payment/domain"
	customValidation "github.com/allisson/checkout/internal/validation"
)

// Config holds checkout configuration
type Config struct {
	// ReservationTTL is how long stock is held for an unpaid order.
	ReservationTTL time.Duration
	// PaymentTimeout bounds the payment session call.
	PaymentTimeout time.Duration
}

type checkoutUseCase struct {
	config    Config
	txManager database.TxManager
	carts     CartRepository
	orders    OrderRepository
	prices    VariantPriceReader
	gateway   PaymentGateway
	outbox    OutboxStore
	audit     AuditRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewCheckoutUseCase creates a new CheckoutUseCase
func NewCheckoutUseCase(
	config Config,
	txManager database.TxManager,
	carts CartRepository,
	orders OrderRepository,
	prices VariantPriceReader,
	gateway PaymentGateway,
	outbox OutboxStore,
	audit AuditRecorder,
	logger *slog.Logger,
) CheckoutUseCase {
	return &checkoutUseCase{
		config:    config,
		txManager: txManager,
		carts:     carts,
		orders:    orders,
		prices:    prices,
		gateway:   gateway,
		outbox:    outbox,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

func validateInput(input CheckoutInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.CartID, customValidation.NotNilUUID),
		validation.Field(&input.UserID, customValidation.NotNilUUID),
		validation.Field(&input.SuccessURL, validation.Required, customValidation.AbsoluteHTTPURL),
		validation.Field(&input.CancelURL, validation.Required, customValidation.AbsoluteHTTPURL),
	)
	return customValidation.WrapValidationError(err)
}

// Execute checks out a cart in a single transaction: price the cart, open a
// payment session, persist the order, close the cart, enqueue the order and
// reservation events and record an audit entry. A gateway failure rolls
// everything back; retrying reuses the same idempotency key.
func (uc *checkoutUseCase) Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var result *CheckoutResult
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		cart, err := uc.carts.GetForUser(ctx, input.CartID, input.UserID)
		if err != nil {
			return err
		}
		if err := cart.EnsureCheckoutable(); err != nil {
			return err
		}

		prices, err := uc.prices.ListPrices(ctx, cart.VariantIDs())
		if err != nil {
			return err
		}

		now := uc.now()
		order, err := domain.NewPendingOrder(cart, prices, now)
		if err != nil {
			return err
		}

		session, err := uc.openSession(ctx, order, input)
		if err != nil {
			return err
		}

		if err := order.StartCheckout(session.SessionID, session.PaymentIntentID,
			now.Add(uc.config.ReservationTTL), now); err != nil {
			return err
		}
		if err := uc.orders.Create(ctx, order); err != nil {
			return err
		}

		if err := cart.MarkCheckedOut(now); err != nil {
			return err
		}
		if err := uc.carts.UpdateStatus(ctx, cart); err != nil {
			return err
		}

		if err := uc.outbox.EnqueueEvents(ctx, order.PullEvents()); err != nil {
			return err
		}

		userID := input.UserID
		if err := uc.audit.Record(ctx, &userID, auditDomain.EventCheckoutStarted, map[string]any{
			"order_id":   order.ID.String(),
			"cart_id":    cart.ID.String(),
			"session_id": session.SessionID,
			"total":      order.Total.Decimal(),
			"currency":   order.Total.Currency,
		}, now); err != nil {
			return err
		}

		result = &CheckoutResult{
			OrderID:     order.ID,
			SessionID:   session.SessionID,
			CheckoutURL: session.URL,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.InfoContext(ctx, "checkout started",
		slog.String("order_id", result.OrderID.String()),
		slog.String("session_id", result.SessionID),
	)
	return result, nil
}

func (uc *checkoutUseCase) openSession(
	ctx context.Context,
	order *domain.Order,
	input CheckoutInput,
) (*paymentDomain.CheckoutSession, error) {
	if uc.config.PaymentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.config.PaymentTimeout)
		defer cancel()
	}

	items := make([]paymentDomain.LineItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, paymentDomain.LineItem{
			Name:       line.Name,
			UnitAmount: line.UnitPrice,
			Currency:   order.Total.Currency,
			Quantity:   int64(line.Quantity),
		})
	}

	session, err := uc.gateway.CreateCheckoutSession(ctx, paymentDomain.CheckoutSessionRequest{
		LineItems: items,
		Metadata: map[string]string{
			"order_id": order.ID.String(),
			"cart_id":  order.CartID.String(),
		},
		SuccessURL:        input.SuccessURL,
		CancelURL:         input.CancelURL,
		IdempotencyKey:    domain.IdempotencyKey(order.ID),
		ClientReferenceID: order.ID.String(),
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidInput) || apperrors.Is(err, apperrors.ErrUnavailable) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.Join(apperrors.ErrUnavailable, err), "failed to create checkout session")
	}
	return session, nil
}
