package repository

import (
	"context"

	"github.com/solemates/commerce-backend/internal/entity"
)

// OrderStore persists orders and their append-only transition trail.
type OrderStore interface {
	Create(ctx context.Context, o *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	GetByExternalReference(ctx context.Context, ref string) (*entity.Order, error)
	FindRecent(ctx context.Context, limit int) ([]entity.Order, error)

	// Mutate loads the order identified by its external reference under an
	// exclusive per-order guard and applies fn to it. On success the order's
	// mutable columns (status, payment id, preference id) are persisted and
	// the transition returned by fn, if any, is appended to the audit trail.
	// A fn error aborts the mutation and leaves the order unchanged.
	Mutate(ctx context.Context, externalReference string, fn func(o *entity.Order) (*entity.Transition, error)) (*entity.Order, error)

	// Transitions returns the audit trail of an order, oldest first.
	Transitions(ctx context.Context, orderID string) ([]entity.Transition, error)
}

// ProductStore handles catalog reads plus the single write path the checkout
// core needs: the conditional durable stock decrement.
type ProductStore interface {
	FindAll(ctx context.Context, limit int) ([]entity.Product, error)
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	Save(ctx context.Context, p *entity.Product) error
	// Seed inserts initial products if none exist.
	Seed(ctx context.Context, products []entity.Product) error
	// DecrementStock subtracts qty from the product's durable stock only if
	// enough stock remains. It reports whether the decrement was applied.
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
}

// SiteConfigStore persists versioned storefront configuration records.
type SiteConfigStore interface {
	// Latest returns the highest stored version, or entity.ErrNotFound when
	// no version has been stored yet.
	Latest(ctx context.Context) (*entity.SiteConfig, error)
	// Append stores cfg as a new version and fills in the assigned version.
	Append(ctx context.Context, cfg *entity.SiteConfig) error
}

// CouponStore persists discount coupons.
type CouponStore interface {
	GetByCode(ctx context.Context, code string) (*entity.Coupon, error)
	Save(ctx context.Context, c *entity.Coupon) error
}
