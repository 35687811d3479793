// Package memory provides in-memory store implementations used by tests and
// by single-process development mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/solemates/commerce-backend/internal/entity"
)

// OrderStore keeps orders and their transition trail in process memory.
// Per-order mutual exclusion during Mutate uses a lazily created per-order
// lock, mirroring the row lock the Postgres store takes.
type OrderStore struct {
	mu          sync.RWMutex
	orders      map[string]*entity.Order // keyed by external reference
	ordersByID  map[string]string        // order id -> external reference
	orderLocks  map[string]*sync.Mutex
	transitions map[string][]entity.Transition
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:      make(map[string]*entity.Order),
		ordersByID:  make(map[string]string),
		orderLocks:  make(map[string]*sync.Mutex),
		transitions: make(map[string][]entity.Transition),
	}
}

func (s *OrderStore) Create(ctx context.Context, o *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ExternalReference] = copyOrder(o)
	s.ordersByID[o.ID] = o.ExternalReference
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	s.mu.RLock()
	ref, ok := s.ordersByID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, entity.ErrNotFound
	}
	return s.GetByExternalReference(ctx, ref)
}

func (s *OrderStore) GetByExternalReference(ctx context.Context, ref string) (*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[ref]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *OrderStore) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := make([]entity.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, *copyOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *OrderStore) Mutate(ctx context.Context, externalReference string, fn func(o *entity.Order) (*entity.Transition, error)) (*entity.Order, error) {
	lock, err := s.orderLock(externalReference)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	stored, ok := s.orders[externalReference]
	s.mu.RUnlock()
	if !ok {
		return nil, entity.ErrNotFound
	}

	working := copyOrder(stored)
	transition, err := fn(working)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.orders[externalReference] = copyOrder(working)
	if transition != nil {
		s.transitions[working.ID] = append(s.transitions[working.ID], *transition)
	}
	s.mu.Unlock()
	return working, nil
}

func (s *OrderStore) Transitions(ctx context.Context, orderID string) ([]entity.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.transitions[orderID]
	out := make([]entity.Transition, len(trail))
	copy(out, trail)
	return out, nil
}

func (s *OrderStore) orderLock(ref string) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[ref]; !ok {
		return nil, entity.ErrNotFound
	}
	lock, ok := s.orderLocks[ref]
	if !ok {
		lock = &sync.Mutex{}
		s.orderLocks[ref] = lock
	}
	return lock, nil
}

func copyOrder(o *entity.Order) *entity.Order {
	cp := *o
	cp.Items = make([]entity.OrderLineItem, len(o.Items))
	copy(cp.Items, o.Items)
	if o.ShippingSnapshot != nil {
		cp.ShippingSnapshot = append([]byte(nil), o.ShippingSnapshot...)
	}
	return &cp
}

// ProductStore keeps catalog products in process memory.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]*entity.Product
}

func NewProductStore() *ProductStore {
	return &ProductStore{products: make(map[string]*entity.Product)}
}

func (s *ProductStore) FindAll(ctx context.Context, limit int) ([]entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]entity.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, *p)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (s *ProductStore) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *ProductStore) Save(ctx context.Context, p *entity.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *ProductStore) Seed(ctx context.Context, products []entity.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.products) > 0 {
		return nil
	}
	for i := range products {
		cp := products[i]
		s.products[cp.ID] = &cp
	}
	return nil
}

func (s *ProductStore) DecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return false, entity.ErrNotFound
	}
	if p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

// SiteConfigStore keeps versioned site configuration records in memory.
type SiteConfigStore struct {
	mu      sync.RWMutex
	configs []entity.SiteConfig
}

func NewSiteConfigStore() *SiteConfigStore {
	return &SiteConfigStore{}
}

func (s *SiteConfigStore) Latest(ctx context.Context) (*entity.SiteConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.configs) == 0 {
		return nil, entity.ErrNotFound
	}
	cfg := s.configs[len(s.configs)-1]
	return &cfg, nil
}

func (s *SiteConfigStore) Append(ctx context.Context, cfg *entity.SiteConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Version = len(s.configs) + 1
	s.configs = append(s.configs, *cfg)
	return nil
}

// CouponStore keeps coupons in memory, keyed by upper-cased code.
type CouponStore struct {
	mu      sync.RWMutex
	coupons map[string]*entity.Coupon
}

func NewCouponStore() *CouponStore {
	return &CouponStore{coupons: make(map[string]*entity.Coupon)}
}

func (s *CouponStore) GetByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CouponStore) Save(ctx context.Context, c *entity.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.Code = strings.ToUpper(c.Code)
	s.coupons[cp.Code] = &cp
	return nil
}
