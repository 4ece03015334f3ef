package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/checkout/internal/audit/domain"
	"github.com/allisson/checkout/internal/checkout/domain"
	outboxDomain "github.com/allisson/checkout/internal/outbox/domain"
	paymentDomain "github.com/allisson/checkout/internal/payment/domain"
)

type memoryCarts struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*domain.Cart
}

func (m *memoryCarts) GetForUser(_ context.Context, cartID, userID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[cartID]
	if !ok || cart.UserID != userID {
		return nil, domain.ErrCartNotFound
	}
	clone := *cart
	clone.Items = append([]domain.CartItem(nil), cart.Items...)
	return &clone, nil
}

func (m *memoryCarts) UpdateStatus(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.carts[cart.ID]
	if !ok {
		return domain.ErrCartNotFound
	}
	stored.Status = cart.Status
	stored.UpdatedAt = cart.UpdatedAt
	return nil
}

type memoryOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]domain.Order
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: map[uuid.UUID]domain.Order{}}
}

func (m *memoryOrders) Create(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *order
	stored.PullEvents()
	m.orders[order.ID] = stored
	return nil
}

func (m *memoryOrders) Update(ctx context.Context, order *domain.Order) error {
	return m.Create(ctx, order)
}

func (m *memoryOrders) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &order, nil
}

func (m *memoryOrders) GetByPaymentIntentID(_ context.Context, paymentIntentID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.PaymentIntentID == paymentIntentID {
			return &order, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

type staticPrices map[uuid.UUID]domain.VariantPrice

func (s staticPrices) ListPrices(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.VariantPrice, error) {
	out := map[uuid.UUID]domain.VariantPrice{}
	for _, id := range ids {
		if price, ok := s[id]; ok {
			out[id] = price
		}
	}
	return out, nil
}

type stubGateway struct {
	requests []paymentDomain.CheckoutSessionRequest
	session  *paymentDomain.CheckoutSession
	err      error
}

func (g *stubGateway) CreateCheckoutSession(
	ctx context.Context,
	req paymentDomain.CheckoutSessionRequest,
) (*paymentDomain.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.session, nil
}

type recordingOutbox struct {
	events []outboxDomain.Event
	err    error
}

func (o *recordingOutbox) EnqueueEvents(_ context.Context, events []outboxDomain.Event) error {
	if o.err != nil {
		return o.err
	}
	o.events = append(o.events, events...)
	return nil
}

type recordingAudit struct {
	entries []string
}

func (a *recordingAudit) Record(context.Context, *uuid.UUID, string, map[string]any, time.Time) error {
	a.entries = append(a.entries, auditDomain.EventCheckoutStarted)
	return nil
}

type staticLedger map[string]bool

func (l staticLedger) AlreadyProcessed(_ context.Context, source, key string) (bool, error) {
	return l[source+"/"+key], nil
}
