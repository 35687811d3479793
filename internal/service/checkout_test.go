package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solemates/commerce-backend/internal/entity"
)

func TestCheckoutHappyPath(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	s.addProduct("p1", "50.00", 5)

	res, err := s.checkout.Checkout(ctx, cart("p1", 2))
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
	assert.NotEmpty(t, res.ExternalReference)
	assert.Equal(t, "pref-1", res.PreferenceID)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("100.00")))

	o, err := s.ledger.GetByExternalReference(ctx, res.ExternalReference)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, o.Status)
	assert.Equal(t, "pref-1", o.PreferenceID)
	assert.NotEmpty(t, o.ReservationID)

	// Durable stock untouched; availability reduced by the held reservation.
	p, err := s.products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	avail, err := s.guard.Available(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, avail)

	// The gateway got the frozen lines and the external reference.
	require.Len(t, s.gateway.preferences, 1)
	pref := s.gateway.preferences[0]
	assert.Equal(t, res.ExternalReference, pref.ExternalReference)
	require.Len(t, pref.Items, 1)
	assert.Equal(t, "p1", pref.Items[0].ID)
	assert.Equal(t, 2, pref.Items[0].Quantity)
	assert.True(t, pref.Items[0].UnitPrice.Equal(decimal.RequireFromString("50.00")))
	assert.Equal(t, "http://localhost:8080/api/payment/webhook", pref.NotificationURL)
}

func TestCheckoutFreezesPriceAtOrderTime(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	s.addProduct("p1", "50.00", 5)

	res, err := s.checkout.Checkout(ctx, cart("p1", 1))
	require.NoError(t, err)

	// Catalog price changes after checkout; the order keeps the old price.
	s.addProduct("p1", "80.00", 5)

	o, err := s.ledger.GetByExternalReference(ctx, res.ExternalReference)
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("50.00")))
}

func TestCheckoutValidation(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	s.addProduct("p1", "50.00", 5)
	hidden := entity.Product{ID: "p2", Name: "Hidden", Price: decimal.RequireFromString("10.00"), Stock: 5}
	require.NoError(t, s.products.Save(ctx, &hidden))

	tests := []struct {
		name string
		req  CheckoutRequest
	}{
		{"empty cart", CheckoutRequest{Buyer: BuyerContact{Email: "b@example.com"}}},
		{"zero quantity", cart("p1", 0)},
		{"negative quantity", cart("p1", -1)},
		{"unknown product", cart("ghost", 1)},
		{"hidden product", cart("p2", 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.checkout.Checkout(ctx, tc.req)
			var verr *entity.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	// Nothing was reserved by any of the failed attempts.
	avail, err := s.guard.Available(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, avail)
}

func TestCheckoutOutOfStock(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	s.addProduct("p1", "50.00", 1)

	_, err := s.checkout.Checkout(ctx, cart("p1", 2))
	var oos *entity.OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, "p1", oos.ProductID)
}

func TestCheckoutGatewayFailureReleasesReservation(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	s.addProduct("p1", "50.00", 5)
	s.gateway.failCreate = true

	_, err := s.checkout.Checkout(ctx, cart("p1", 2))
	var gerr *entity.GatewayError
	require.ErrorAs(t, err, &gerr)

	// The reservation is gone and the order attempt is on record as rejected.
	avail, err := s.guard.Available(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, avail)

	orders, err := s.ledger.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, entity.StatusRejected, orders[0].Status)

	trail, err := s.ledger.Trail(ctx, orders[0].ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "gateway-failure", trail[0].CausationID)
}

func TestCheckoutAppliesCoupon(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	s.addProduct("p1", "50.00", 5)
	require.NoError(t, s.coupons.Save(ctx, &entity.Coupon{Code: "SAVE10", DiscountPercent: 10, Active: true}))

	req := cart("p1", 2)
	req.CouponCode = "save10"
	res, err := s.checkout.Checkout(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("90.00")), "got %s", res.TotalAmount)

	o, err := s.ledger.GetByExternalReference(ctx, res.ExternalReference)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.True(t, o.DiscountAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestCheckoutRejectsBadCoupons(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	s.addProduct("p1", "50.00", 5)
	require.NoError(t, s.coupons.Save(ctx, &entity.Coupon{Code: "OFF", DiscountPercent: 10, Active: false}))
	require.NoError(t, s.coupons.Save(ctx, &entity.Coupon{
		Code: "OLD", DiscountPercent: 10, Active: true, ExpiresAt: time.Now().Add(-time.Hour),
	}))

	for _, code := range []string{"NOPE", "OFF", "OLD"} {
		req := cart("p1", 1)
		req.CouponCode = code
		_, err := s.checkout.Checkout(ctx, req)
		var verr *entity.ValidationError
		assert.ErrorAs(t, err, &verr, "coupon %s", code)
	}
}

func TestCheckoutConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	s := newStack()
	s.addProduct("p1", "50.00", 1)

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins int

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.checkout.Checkout(ctx, cart("p1", 1)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "only one checkout may take the last unit")
}
