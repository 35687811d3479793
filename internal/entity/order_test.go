package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusShipped, false},
		{StatusApproved, StatusShipped, true},
		{StatusApproved, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusPending, false},
		{StatusRejected, StatusShipped, false},
		{StatusShipped, StatusApproved, false},
		{StatusShipped, StatusPending, false},
		{StatusShipped, StatusRejected, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusShipped.Terminal())
}

func TestRecomputeTotal(t *testing.T) {
	items := []OrderLineItem{
		{ProductID: "p1", UnitPrice: decimal.RequireFromString("50.00"), Quantity: 2},
		{ProductID: "p2", UnitPrice: decimal.RequireFromString("19.90"), Quantity: 3},
	}
	assert.True(t, RecomputeTotal(items).Equal(decimal.RequireFromString("159.70")))
}

func TestWithinTolerance(t *testing.T) {
	a := decimal.RequireFromString("100.00")
	assert.True(t, WithinTolerance(a, decimal.RequireFromString("100.00")))
	assert.True(t, WithinTolerance(a, decimal.RequireFromString("100.004")))
	assert.True(t, WithinTolerance(a, decimal.RequireFromString("99.996")))
	assert.False(t, WithinTolerance(a, decimal.RequireFromString("100.01")))
	assert.False(t, WithinTolerance(a, decimal.RequireFromString("99.99")))
}

func TestCouponApply(t *testing.T) {
	c := Coupon{Code: "NATAL10", DiscountPercent: 10, Active: true}
	total := c.Apply(decimal.RequireFromString("159.70"))
	assert.True(t, total.Equal(decimal.RequireFromString("143.73")), "got %s", total)
}

func TestCouponExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, Coupon{}.Expired(now), "no expiry means never expired")
	assert.False(t, Coupon{ExpiresAt: now.Add(time.Hour)}.Expired(now))
	assert.True(t, Coupon{ExpiresAt: now.Add(-time.Hour)}.Expired(now))
}
