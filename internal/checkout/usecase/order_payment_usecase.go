package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/checkout/domain"
	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
	ledgerDomain "github.com/allisson/checkout/internal/ledger/domain"
)

// ErrUnverifiedPaymentEvent is returned for payment events the ledger has never accepted.
var ErrUnverifiedPaymentEvent = apperrors.Wrap(apperrors.ErrDomainState, "payment event was not processed by the gateway")

type orderPaymentUseCase struct {
	txManager database.TxManager
	orders    OrderRepository
	ledger    EventLedger
	outbox    OutboxStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderPaymentUseCase creates a new OrderPaymentUseCase
func NewOrderPaymentUseCase(
	txManager database.TxManager,
	orders OrderRepository,
	ledger EventLedger,
	outbox OutboxStore,
	logger *slog.Logger,
) OrderPaymentUseCase {
	return &orderPaymentUseCase{
		txManager: txManager,
		orders:    orders,
		ledger:    ledger,
		outbox:    outbox,
		logger:    logger,
		now:       time.Now,
	}
}

// ApplyPaymentEvent moves the order referenced by event to the status its
// type implies. Event types without a status are ignored, and so is an
// order already in the target status. An order is never changed on behalf of
// an event the payment ledger does not hold.
func (uc *orderPaymentUseCase) ApplyPaymentEvent(ctx context.Context, event PaymentEvent) error {
	target, ok := domain.StatusForPaymentEvent(event.Type)
	if !ok {
		uc.logger.DebugContext(ctx, "payment event type ignored",
			slog.String("event_id", event.EventID),
			slog.String("type", event.Type),
		)
		return nil
	}
	if event.EventID == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "payment event without id")
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		processed, err := uc.ledger.AlreadyProcessed(ctx, ledgerDomain.SourcePayments, event.EventID)
		if err != nil {
			return err
		}
		if !processed {
			return apperrors.Wrap(ErrUnverifiedPaymentEvent, event.EventID)
		}

		order, err := uc.findOrder(ctx, event)
		if err != nil {
			return err
		}

		changed, err := order.ApplyPaymentStatus(target, event.EventID, uc.now())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if order.PaymentIntentID == "" {
			order.PaymentIntentID = event.PaymentIntentID
		}

		if err := uc.orders.Update(ctx, order); err != nil {
			return err
		}
		if err := uc.outbox.EnqueueEvents(ctx, order.PullEvents()); err != nil {
			return err
		}

		uc.logger.InfoContext(ctx, "order payment status changed",
			slog.String("order_id", order.ID.String()),
			slog.String("status", string(order.Status)),
			slog.String("event_id", event.EventID),
		)
		return nil
	})
}

func (uc *orderPaymentUseCase) findOrder(ctx context.Context, event PaymentEvent) (*domain.Order, error) {
	switch {
	case event.OrderID != uuid.Nil:
		return uc.orders.GetByID(ctx, event.OrderID)
	case event.PaymentIntentID != "":
		return uc.orders.GetByPaymentIntentID(ctx, event.PaymentIntentID)
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "payment event references no order")
	}
}
