package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is a percentage discount code redeemable at checkout.
type Coupon struct {
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	ExpiresAt       time.Time `json:"expiration_date"` // zero means no expiry
	Active          bool      `json:"active"`
}

// Expired reports whether the coupon can no longer be redeemed at now.
func (c Coupon) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}

// Apply returns total reduced by the discount percentage, rounded to cents.
func (c Coupon) Apply(total decimal.Decimal) decimal.Decimal {
	discount := total.Mul(decimal.NewFromInt(int64(c.DiscountPercent))).
		Div(decimal.NewFromInt(100))
	return total.Sub(discount).Round(2)
}
