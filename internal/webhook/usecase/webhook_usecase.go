package usecase

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"time"

	auditDomain "github.com/allisson/checkout/internal/audit/domain"
	"github.com/allisson/checkout/internal/database"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
	paymentDomain "github.com/allisson/checkout/internal/payment/domain"
)

// ExchangePayments carries normalized payment provider events.
const ExchangePayments = "payments"

// RoutingKeyPrefix prefixes the routing key of every payment event.
const RoutingKeyPrefix = "payment.event."

// RoutingKeyFor maps a provider event type to its routing key.
func RoutingKeyFor(eventType string) string {
	return RoutingKeyPrefix + strings.ReplaceAll(eventType, ":", ".")
}

type webhookUseCase struct {
	txManager database.TxManager
	verifier  Verifier
	ledger    EventLedger
	outbox    OutboxStore
	audit     AuditRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewWebhookUseCase creates a new WebhookUseCase
func NewWebhookUseCase(
	txManager database.TxManager,
	verifier Verifier,
	ledger EventLedger,
	outbox OutboxStore,
	audit AuditRecorder,
	logger *slog.Logger,
) WebhookUseCase {
	return &webhookUseCase{
		txManager: txManager,
		verifier:  verifier,
		ledger:    ledger,
		outbox:    outbox,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// Process verifies the payload and, unless the event was seen before,
// enqueues it on the payments exchange, marks it processed and records an
// audit entry in one transaction. Verification failures are
// ErrInvalidSignature and nothing is written.
func (uc *webhookUseCase) Process(
	ctx context.Context,
	source string,
	raw []byte,
	signature string,
) (*Result, error) {
	envelope, err := uc.verifier.Parse(raw, signature)
	if err != nil {
		return nil, err
	}

	result := &Result{
		EventID:    envelope.ExternalID,
		Type:       envelope.Type,
		RoutingKey: RoutingKeyFor(envelope.Type),
	}

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		processed, err := uc.ledger.AlreadyProcessed(ctx, source, envelope.ExternalID)
		if err != nil {
			return err
		}
		if processed {
			result.Duplicate = true
			return nil
		}

		headers := map[string]string{outboxDomain.HeaderAggregateID: envelope.ExternalID}
		if _, err := uc.outbox.Enqueue(ctx, ExchangePayments, result.RoutingKey, headers, eventPayload(envelope)); err != nil {
			return err
		}

		if err := uc.ledger.MarkProcessed(ctx, source, envelope.ExternalID); err != nil {
			return err
		}

		return uc.audit.Record(ctx, nil, auditDomain.EventPaymentEventReceived, map[string]any{
			"source":   source,
			"event_id": envelope.ExternalID,
			"type":     envelope.Type,
		}, uc.now())
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		uc.logger.InfoContext(ctx, "duplicate payment event ignored",
			slog.String("source", source),
			slog.String("event_id", envelope.ExternalID),
		)
	}

	return result, nil
}

// eventPayload is the normalized payload with id, type and occurred_at
// filled in when the provider object did not already carry them.
func eventPayload(envelope *paymentDomain.EventEnvelope) map[string]any {
	payload := make(map[string]any, len(envelope.Payload)+3)
	maps.Copy(payload, envelope.Payload)

	if _, ok := payload[paymentDomain.FieldID]; !ok {
		payload[paymentDomain.FieldID] = envelope.ExternalID
	}
	if _, ok := payload[paymentDomain.FieldType]; !ok {
		payload[paymentDomain.FieldType] = envelope.Type
	}
	if _, ok := payload[paymentDomain.FieldOccurredAt]; !ok {
		payload[paymentDomain.FieldOccurredAt] = envelope.OccurredAt.UTC().Format(time.RFC3339)
	}

	return payload
}
