package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/database"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/inventory/domain"
)

// Config holds reservation use case configuration
type Config struct {
	// TTL is used when a reserve request carries no expiry.
	TTL           time.Duration
	SweepInterval time.Duration
	SweepBatch    int
}

type reservationUseCase struct {
	config          Config
	txManager       database.TxManager
	adjuster        InventoryAdjuster
	reservationRepo ReservationRepository
	outbox          EventEnqueuer
	outcomes        OutcomeLedger
	logger          *slog.Logger
	now             func() time.Time
}

// NewReservationUseCase creates a new ReservationUseCase
func NewReservationUseCase(
	config Config,
	txManager database.TxManager,
	adjuster InventoryAdjuster,
	reservationRepo ReservationRepository,
	outbox EventEnqueuer,
	outcomes OutcomeLedger,
	logger *slog.Logger,
) ReservationUseCase {
	return &reservationUseCase{
		config:          config,
		txManager:       txManager,
		adjuster:        adjuster,
		reservationRepo: reservationRepo,
		outbox:          outbox,
		outcomes:        outcomes,
		logger:          logger,
		now:             time.Now,
	}
}

// Reserve holds stock for every item of an order. It is idempotent per order:
// an existing reservation is returned unchanged. When one item cannot be held,
// the items already held are given back and the reservation is stored as
// released with an inventory.reservation.failed event. An outcome recorded
// before the request arrived is applied right away: a paid order is
// confirmed once held and a closed order is released without touching stock.
func (r *reservationUseCase) Reserve(ctx context.Context, req domain.ReserveRequest) (*domain.Reservation, error) {
	now := r.now().UTC()
	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(r.config.TTL)
	}

	reservation, err := domain.NewPendingReservation(req.OrderID, req.Items, expiresAt, now)
	if err != nil {
		return nil, err
	}

	var result *domain.Reservation
	err = r.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, err := r.reservationRepo.GetByOrderID(ctx, req.OrderID)
		if err == nil {
			result = existing
			return nil
		}
		if !apperrors.Is(err, domain.ErrReservationNotFound) {
			return err
		}

		paid, err := r.outcomeRecorded(ctx, req.OrderID, domain.OutcomePaid)
		if err != nil {
			return err
		}
		closed := false
		if !paid {
			if closed, err = r.outcomeRecorded(ctx, req.OrderID, domain.OutcomeClosed); err != nil {
				return err
			}
		}

		if closed {
			if err := reservation.Release(now); err != nil {
				return err
			}
		} else if err := r.hold(ctx, reservation, now); err != nil {
			return err
		}

		if paid && reservation.Status == domain.ReservationReserved {
			if err := r.confirm(ctx, reservation); err != nil {
				return err
			}
		}

		if err := r.reservationRepo.Create(ctx, reservation); err != nil {
			return err
		}
		if err := r.outbox.EnqueueEvents(ctx, reservation.PullEvents()); err != nil {
			return err
		}

		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("reservation processed",
		slog.String("order_id", result.OrderID.String()),
		slog.String("reservation_id", result.ID.String()),
		slog.String("status", string(result.Status)),
	)
	return result, nil
}

// Confirm turns a RESERVED reservation into a physical stock decrement.
func (r *reservationUseCase) Confirm(ctx context.Context, orderID uuid.UUID) (*domain.Reservation, error) {
	return r.transition(ctx, orderID, domain.OutcomePaid, r.confirm)
}

// Release gives the held stock of an order back.
func (r *reservationUseCase) Release(ctx context.Context, orderID uuid.UUID) (*domain.Reservation, error) {
	return r.transition(ctx, orderID, domain.OutcomeClosed, func(ctx context.Context, reservation *domain.Reservation) error {
		wasReserved := reservation.Status == domain.ReservationReserved
		if err := reservation.Release(r.now()); err != nil {
			return err
		}
		if wasReserved {
			return r.releaseItems(ctx, reservation)
		}
		return nil
	})
}

// ExpireDue expires up to limit overdue reservations and returns how many were expired.
func (r *reservationUseCase) ExpireDue(ctx context.Context, limit int) (int, error) {
	var expired int

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		expired = 0
		now := r.now().UTC()

		reservations, err := r.reservationRepo.ListExpirable(ctx, now, limit)
		if err != nil {
			return err
		}

		for _, reservation := range reservations {
			wasReserved := reservation.Status == domain.ReservationReserved
			if err := reservation.Expire(now); err != nil {
				return err
			}
			if wasReserved {
				if err := r.releaseItems(ctx, reservation); err != nil {
					return err
				}
			}
			if err := r.save(ctx, reservation); err != nil {
				return err
			}
			expired++
		}
		return nil
	})

	return expired, err
}

// RunSweeper expires overdue reservations every SweepInterval until ctx is cancelled.
func (r *reservationUseCase) RunSweeper(ctx context.Context) error {
	r.logger.Info("starting reservation sweeper",
		slog.Duration("interval", r.config.SweepInterval),
		slog.Int("batch_size", r.config.SweepBatch),
	)

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping reservation sweeper")
			return nil
		case <-ticker.C:
			expired, err := r.ExpireDue(ctx, r.config.SweepBatch)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("failed to expire reservations", slog.Any("error", err))
				}
				continue
			}
			if expired > 0 {
				r.logger.Info("expired reservations", slog.Int("count", expired))
			}
		}
	}
}

// Restock adds qty units of a variant and returns its counters.
func (r *reservationUseCase) Restock(ctx context.Context, variantID uuid.UUID, qty int) (*domain.Stock, error) {
	if variantID == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "variant id is required")
	}
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var stock *domain.Stock
	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := r.adjuster.Restock(ctx, variantID, qty); err != nil {
			return err
		}
		var err error
		stock, err = r.adjuster.Get(ctx, variantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stock, nil
}

func (r *reservationUseCase) transition(
	ctx context.Context,
	orderID uuid.UUID,
	outcome string,
	apply func(ctx context.Context, reservation *domain.Reservation) error,
) (*domain.Reservation, error) {
	var result *domain.Reservation

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		result = nil
		reservation, err := r.reservationRepo.GetByOrderID(ctx, orderID)
		if apperrors.Is(err, domain.ErrReservationNotFound) {
			return r.outcomes.MarkProcessed(ctx, domain.SourceEarlyOutcome, domain.EarlyOutcomeKey(orderID, outcome))
		}
		if err != nil {
			return err
		}
		if err := apply(ctx, reservation); err != nil {
			return err
		}
		if err := r.save(ctx, reservation); err != nil {
			return err
		}
		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result == nil {
		r.logger.Info("order outcome recorded ahead of its reservation",
			slog.String("order_id", orderID.String()),
			slog.String("outcome", outcome),
		)
		return nil, nil
	}

	r.logger.Info("reservation updated",
		slog.String("order_id", result.OrderID.String()),
		slog.String("status", string(result.Status)),
	)
	return result, nil
}

// hold reserves every item of a PENDING reservation or rejects it on the first shortage.
func (r *reservationUseCase) hold(ctx context.Context, reservation *domain.Reservation, now time.Time) error {
	held := make([]domain.ReservationItem, 0, len(reservation.Items))
	for _, item := range reservation.Items {
		ok, err := r.adjuster.TryReserve(ctx, item.VariantID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			for _, h := range held {
				if err := r.adjuster.ReleaseReserved(ctx, h.VariantID, h.Quantity); err != nil {
					return err
				}
			}
			return reservation.Reject(now, "insufficient stock for variant "+item.VariantID.String())
		}
		held = append(held, item)
	}
	return reservation.MarkReserved(now)
}

func (r *reservationUseCase) confirm(ctx context.Context, reservation *domain.Reservation) error {
	if err := reservation.Confirm(r.now()); err != nil {
		return err
	}
	for _, item := range reservation.Items {
		if err := r.adjuster.CommitReserved(ctx, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (r *reservationUseCase) outcomeRecorded(ctx context.Context, orderID uuid.UUID, outcome string) (bool, error) {
	return r.outcomes.AlreadyProcessed(ctx, domain.SourceEarlyOutcome, domain.EarlyOutcomeKey(orderID, outcome))
}

func (r *reservationUseCase) save(ctx context.Context, reservation *domain.Reservation) error {
	if err := r.reservationRepo.Update(ctx, reservation); err != nil {
		return err
	}
	return r.outbox.EnqueueEvents(ctx, reservation.PullEvents())
}

func (r *reservationUseCase) releaseItems(ctx context.Context, reservation *domain.Reservation) error {
	for _, item := range reservation.Items {
		if err := r.adjuster.ReleaseReserved(ctx, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
