package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/checkout/internal/inventory/domain"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
)

// memoryStock is an InventoryAdjuster whose counter updates are atomic under a mutex,
// mirroring the single conditional UPDATE of the SQL repositories.
type memoryStock struct {
	mu     sync.Mutex
	stocks map[uuid.UUID]*domain.Stock
	fail   error
}

func newMemoryStock() *memoryStock {
	return &memoryStock{stocks: make(map[uuid.UUID]*domain.Stock)}
}

func (m *memoryStock) set(variantID uuid.UUID, total, reserved int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks[variantID] = &domain.Stock{VariantID: variantID, TotalStock: total, Reserved: reserved}
}

func (m *memoryStock) snapshot(variantID uuid.UUID) domain.Stock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.stocks[variantID]
}

func (m *memoryStock) TryReserve(_ context.Context, variantID uuid.UUID, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	s, ok := m.stocks[variantID]
	if !ok || s.TotalStock-s.Reserved < qty {
		return false, nil
	}
	s.Reserved += qty
	return true, nil
}

func (m *memoryStock) ReleaseReserved(_ context.Context, variantID uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stocks[variantID]
	if !ok || s.Reserved < qty {
		return domain.ErrStockNotReserved
	}
	s.Reserved -= qty
	return nil
}

func (m *memoryStock) CommitReserved(_ context.Context, variantID uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stocks[variantID]
	if !ok || s.Reserved < qty {
		return domain.ErrStockNotReserved
	}
	s.Reserved -= qty
	s.TotalStock -= qty
	return nil
}

func (m *memoryStock) Restock(_ context.Context, variantID uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stocks[variantID]
	if !ok {
		s = &domain.Stock{VariantID: variantID}
		m.stocks[variantID] = s
	}
	s.TotalStock += qty
	return nil
}

func (m *memoryStock) Get(_ context.Context, variantID uuid.UUID) (*domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stocks[variantID]
	if !ok {
		return nil, domain.ErrStockNotFound
	}
	c := *s
	return &c, nil
}

type memoryReservations struct {
	mu      sync.Mutex
	byOrder map[uuid.UUID]*domain.Reservation
}

func newMemoryReservations() *memoryReservations {
	return &memoryReservations{byOrder: make(map[uuid.UUID]*domain.Reservation)}
}

func (m *memoryReservations) Create(_ context.Context, r *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byOrder[r.OrderID] = r
	return nil
}

func (m *memoryReservations) Update(_ context.Context, r *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byOrder[r.OrderID] = r
	return nil
}

func (m *memoryReservations) GetByOrderID(_ context.Context, orderID uuid.UUID) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byOrder[orderID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return r, nil
}

func (m *memoryReservations) ListExpirable(_ context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Reservation
	for _, r := range m.byOrder {
		if len(out) == limit {
			break
		}
		if (r.Status == domain.ReservationPending || r.Status == domain.ReservationReserved) && r.IsExpired(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

type recordingOutbox struct {
	mu     sync.Mutex
	events []outboxDomain.Event
}

func (o *recordingOutbox) EnqueueEvents(_ context.Context, events []outboxDomain.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, events...)
	return nil
}

func (o *recordingOutbox) routingKeys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.events))
	for _, e := range o.events {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}

type memoryLedger struct {
	mu      sync.Mutex
	entries map[string]bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{entries: make(map[string]bool)}
}

func (l *memoryLedger) AlreadyProcessed(_ context.Context, source, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[source+"/"+key], nil
}

func (l *memoryLedger) MarkProcessed(_ context.Context, source, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[source+"/"+key] = true
	return nil
}

type failingLedger struct {
	err error
}

func (l *failingLedger) AlreadyProcessed(context.Context, string, string) (bool, error) {
	return false, l.err
}

func (l *failingLedger) MarkProcessed(context.Context, string, string) error {
	return l.err
}
