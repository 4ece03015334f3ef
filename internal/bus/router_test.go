package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	databaseMocks "github.com/allisson/checkout/internal/database/mocks"
	apperrors "github.com/allisson/checkout/internal/errors"
	"github.com/allisson/checkout/internal/metrics"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
	"github.com/allisson/checkout/internal/testutil"
)

type memoryLedger struct {
	mu      sync.Mutex
	entries map[string]bool
	marks   int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{entries: make(map[string]bool)}
}

func (l *memoryLedger) AlreadyProcessed(_ context.Context, source, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[source+"|"+key], nil
}

func (l *memoryLedger) MarkProcessed(_ context.Context, source, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marks++
	l.entries[source+"|"+key] = true
	return nil
}

func newTestRouter(t *testing.T, ledger Ledger) *Router {
	t.Helper()
	txManager := databaseMocks.NewMockTxManager(t).Passthrough()
	return NewRouter("inventory", ledger, txManager, metrics.NewNoOpBusinessMetrics(), testutil.DiscardLogger())
}

type recordingMetrics struct {
	*metrics.NoOpBusinessMetrics
	mu       sync.Mutex
	statuses []string
}

func (m *recordingMetrics) RecordMessage(_ context.Context, direction, _, _, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, direction+":"+status)
}

func message(routingKey, id string) Message {
	return Message{
		Exchange:   "orders",
		RoutingKey: routingKey,
		Headers:    map[string]string{outboxDomain.HeaderMessageID: id},
		Payload:    []byte(`{}`),
	}
}

func TestRouter_Dispatch_ExactAndPrefix(t *testing.T) {
	router := newTestRouter(t, newMemoryLedger())

	var got []string
	router.Handle("order.paid", func(_ context.Context, msg Message) error {
		got = append(got, "exact:"+msg.RoutingKey)
		return nil
	})
	router.HandlePrefix("payment.event.", func(_ context.Context, msg Message) error {
		got = append(got, "prefix:"+msg.RoutingKey)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, router.Dispatch(ctx, message("order.paid", "m-1")))
	require.NoError(t, router.Dispatch(ctx, message("payment.event.charge.refunded", "m-2")))
	require.NoError(t, router.Dispatch(ctx, message("order.unknown", "m-3")))

	assert.Equal(t, []string{"exact:order.paid", "prefix:payment.event.charge.refunded"}, got)
}

func TestRouter_Dispatch_SkipsDuplicates(t *testing.T) {
	ledger := newMemoryLedger()
	router := newTestRouter(t, ledger)

	calls := 0
	router.Handle("order.paid", func(context.Context, Message) error {
		calls++
		return nil
	})

	ctx := context.Background()
	require.NoError(t, router.Dispatch(ctx, message("order.paid", "m-1")))
	require.NoError(t, router.Dispatch(ctx, message("order.paid", "m-1")))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ledger.marks)
	processed, _ := ledger.AlreadyProcessed(ctx, "consumer:inventory", "m-1")
	assert.True(t, processed)
}

func TestRouter_Dispatch_InfrastructureErrorIsReturned(t *testing.T) {
	ledger := newMemoryLedger()
	router := newTestRouter(t, ledger)
	dbErr := errors.New("connection reset")

	router.Handle("order.paid", func(context.Context, Message) error { return dbErr })

	err := router.Dispatch(context.Background(), message("order.paid", "m-1"))
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, 0, ledger.marks)
}

func TestRouter_Dispatch_BusinessErrorIsDiscarded(t *testing.T) {
	ledger := newMemoryLedger()
	router := newTestRouter(t, ledger)

	calls := 0
	router.Handle("order.paid", func(context.Context, Message) error {
		calls++
		return apperrors.Wrap(apperrors.ErrDomainState, "reservation is released")
	})

	ctx := context.Background()
	assert.NoError(t, router.Dispatch(ctx, message("order.paid", "m-1")))
	assert.NoError(t, router.Dispatch(ctx, message("order.paid", "m-1")))
	assert.Equal(t, 1, calls)
}

func TestRouter_Dispatch_WithoutMessageID(t *testing.T) {
	ledger := newMemoryLedger()
	router := newTestRouter(t, ledger)

	calls := 0
	router.Handle("order.paid", func(context.Context, Message) error {
		calls++
		return nil
	})

	msg := Message{Exchange: "orders", RoutingKey: "order.paid", Headers: map[string]string{}}
	require.NoError(t, router.Dispatch(context.Background(), msg))
	require.NoError(t, router.Dispatch(context.Background(), msg))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, ledger.marks)
}

func TestRouter_Dispatch_RecordsMessageOutcomes(t *testing.T) {
	recorder := &recordingMetrics{NoOpBusinessMetrics: &metrics.NoOpBusinessMetrics{}}
	router := NewRouter("inventory", newMemoryLedger(), databaseMocks.NewMockTxManager(t).Passthrough(),
		recorder, testutil.DiscardLogger())
	router.Handle("order.paid", func(context.Context, Message) error { return nil })
	router.Handle("order.cancelled", func(context.Context, Message) error {
		return apperrors.Wrap(apperrors.ErrDomainState, "reservation is confirmed")
	})

	ctx := context.Background()
	require.NoError(t, router.Dispatch(ctx, message("order.paid", "m-1")))
	require.NoError(t, router.Dispatch(ctx, message("order.paid", "m-1")))
	require.NoError(t, router.Dispatch(ctx, message("order.cancelled", "m-2")))
	require.NoError(t, router.Dispatch(ctx, message("cart.updated", "m-3")))

	assert.Equal(t, []string{
		"consume:success",
		"consume:duplicate",
		"consume:discarded",
		"consume:unrouted",
	}, recorder.statuses)
}
