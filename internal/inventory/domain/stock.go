package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/checkout/internal/errors"
)

// Stock errors.
var (
	ErrStockNotFound    = apperrors.Wrap(apperrors.ErrNotFound, "stock not found")
	ErrStockNotReserved = apperrors.Wrap(apperrors.ErrDomainState, "stock is not reserved")
	ErrInvalidQuantity  = apperrors.Wrap(apperrors.ErrInvalidInput, "quantity must be positive")
)

// Stock holds the counters of one variant, with 0 <= Reserved <= TotalStock.
type Stock struct {
	VariantID  uuid.UUID
	TotalStock int
	Reserved   int
	UpdatedAt  time.Time
}

// Available returns the quantity that can still be reserved.
func (s *Stock) Available() int {
	return s.TotalStock - s.Reserved
}
