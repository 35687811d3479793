package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/gateway"
	"github.com/solemates/commerce-backend/internal/inventory"
	"github.com/solemates/commerce-backend/internal/messaging"
	"github.com/solemates/commerce-backend/internal/repository/memory"
)

// capturePublisher records published events instead of hitting a broker.
type capturePublisher struct {
	mu     sync.Mutex
	events []entity.Event
}

func (p *capturePublisher) PublishEvent(ctx context.Context, topic, key string, event entity.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Events() []entity.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entity.Event, len(p.events))
	copy(out, p.events)
	return out
}

// fakeGateway is an in-memory PaymentGateway.
type fakeGateway struct {
	mu          sync.Mutex
	failCreate  bool
	preferences []gateway.PreferenceRequest
	payments    map[string]*gateway.Payment
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*gateway.Payment)}
}

func (g *fakeGateway) CreatePreference(ctx context.Context, req gateway.PreferenceRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate {
		return "", &entity.GatewayError{Op: "create preference", Err: fmt.Errorf("gateway down")}
	}
	g.preferences = append(g.preferences, req)
	return fmt.Sprintf("pref-%d", len(g.preferences)), nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &entity.GatewayError{Op: "get payment", Err: fmt.Errorf("payment %s unknown", paymentID)}
	}
	return p, nil
}

func (g *fakeGateway) addPayment(id, status, externalReference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[id] = &gateway.Payment{ID: id, Status: status, ExternalReference: externalReference}
}

// stack bundles a fully wired in-memory checkout core for tests.
type stack struct {
	orders     *memory.OrderStore
	products   *memory.ProductStore
	coupons    *memory.CouponStore
	guard      *inventory.Guard
	ledger     *Ledger
	checkout   *Checkout
	reconciler *Reconciler
	gateway    *fakeGateway
	publisher  *capturePublisher
}

func newStack() *stack {
	orders := memory.NewOrderStore()
	products := memory.NewProductStore()
	coupons := memory.NewCouponStore()
	guard := inventory.NewGuard(products, inventory.NewMemoryCounter(), inventory.NewMemoryReservations())
	publisher := &capturePublisher{}
	gw := newFakeGateway()
	ledger := NewLedger(orders, publisher)
	checkout := NewCheckout(products, coupons, guard, ledger, gw,
		"http://localhost:8080/api/payment/webhook",
		gateway.BackURLs{Success: "http://front/success.html"})
	return &stack{
		orders:     orders,
		products:   products,
		coupons:    coupons,
		guard:      guard,
		ledger:     ledger,
		checkout:   checkout,
		reconciler: NewReconciler(ledger),
		gateway:    gw,
		publisher:  publisher,
	}
}

// newBrokerStack wires the same core through an in-process broker and starts
// the stock consumer, for end-to-end event flow tests.
func newBrokerStack(ctx context.Context) *stack {
	s := newStack()
	broker := messaging.NewChannelBroker()
	s.ledger = NewLedger(s.orders, broker)
	s.checkout = NewCheckout(s.products, s.coupons, s.guard, s.ledger, s.gateway,
		"http://localhost:8080/api/payment/webhook", gateway.BackURLs{})
	s.reconciler = NewReconciler(s.ledger)

	consumer := NewStockConsumer(s.guard)
	go broker.Consume(ctx, messaging.TopicOrderEvents, consumer.Handle)
	// Give the gochannel subscriber a beat to attach before events flow.
	time.Sleep(50 * time.Millisecond)
	return s
}

func (s *stack) addProduct(id string, price string, stock int) {
	s.products.Save(context.Background(), &entity.Product{
		ID:        id,
		Name:      "Product " + id,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Visible:   true,
		CreatedAt: time.Now(),
	})
}

func cart(productID string, qty int) CheckoutRequest {
	return CheckoutRequest{
		Items: []CartItem{{ProductID: productID, Quantity: qty}},
		Buyer: BuyerContact{Email: "buyer@example.com"},
	}
}
