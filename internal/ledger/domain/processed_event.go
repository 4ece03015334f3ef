// Package domain defines the idempotency ledger entities.
package domain

import (
	"strings"
	"time"

	apperrors "github.com/allisson/checkout/internal/errors"
)

// SourcePayments is the ledger source of payment provider webhooks.
const SourcePayments = "stripe"

// ErrInvalidLedgerKey is returned for an empty source or key.
var ErrInvalidLedgerKey = apperrors.Wrap(apperrors.ErrInvalidInput, "ledger source and key are required")

// ProcessedEvent records that the external event (Source, Key) was handled.
// The pair is unique and an entry is never updated.
type ProcessedEvent struct {
	Source      string
	Key         string
	ProcessedAt time.Time
}

// NewProcessedEvent validates and builds a ledger entry.
func NewProcessedEvent(source, key string, at time.Time) (*ProcessedEvent, error) {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrInvalidLedgerKey
	}
	return &ProcessedEvent{Source: source, Key: key, ProcessedAt: at.UTC()}, nil
}
