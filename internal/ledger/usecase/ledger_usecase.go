// Package usecase implements the idempotency ledger consulted before an
// external event or bus message is acted upon.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/checkout/internal/ledger/domain"
)

// LedgerRepository defines ledger persistence operations
type LedgerRepository interface {
	Exists(ctx context.Context, source, key string) (bool, error)
	Insert(ctx context.Context, event *domain.ProcessedEvent) error
}

// UseCase defines the idempotency ledger operations
type UseCase interface {
	AlreadyProcessed(ctx context.Context, source, key string) (bool, error)
	MarkProcessed(ctx context.Context, source, key string) error
}

// LedgerUseCase implements UseCase. The check and the mark are separate
// statements; callers racing on the same key may both see "not processed".
type LedgerUseCase struct {
	repo LedgerRepository
	now  func() time.Time
}

// NewLedgerUseCase creates a new LedgerUseCase
func NewLedgerUseCase(repo LedgerRepository) *LedgerUseCase {
	return &LedgerUseCase{repo: repo, now: time.Now}
}

// AlreadyProcessed reports whether (source, key) was marked.
func (uc *LedgerUseCase) AlreadyProcessed(ctx context.Context, source, key string) (bool, error) {
	if _, err := domain.NewProcessedEvent(source, key, uc.now()); err != nil {
		return false, err
	}
	return uc.repo.Exists(ctx, source, key)
}

// MarkProcessed records (source, key). Marking an existing pair is a no-op.
func (uc *LedgerUseCase) MarkProcessed(ctx context.Context, source, key string) error {
	event, err := domain.NewProcessedEvent(source, key, uc.now())
	if err != nil {
		return err
	}
	return uc.repo.Insert(ctx, event)
}
