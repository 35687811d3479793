package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an Order.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusShipped  Status = "shipped"
)

// transitions is the full state graph. A status missing from the map is terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusShipped},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusShipped:
		return true
	}
	return false
}

// CanTransition reports whether to is reachable from s in a single step.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Order is a placed customer order. Orders are never deleted, only
// status-transitioned; every applied transition is recorded in the audit trail.
type Order struct {
	ID                string          `json:"id"`
	BuyerID           string          `json:"buyer_id,omitempty"`
	ExternalReference string          `json:"external_reference"`
	Status            Status          `json:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	PaymentID         string          `json:"payment_id,omitempty"`
	PreferenceID      string          `json:"preference_id,omitempty"`
	ReservationID     string          `json:"reservation_id,omitempty"`
	CouponCode        string          `json:"coupon_code,omitempty"`
	ShippingSnapshot  json.RawMessage `json:"shipping_snapshot,omitempty"`
	Items             []OrderLineItem `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
}

// OrderLineItem is a line within an order. The unit price is frozen at
// order-creation time and never re-read from the catalog.
type OrderLineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price_at_purchase"`
	Quantity  int             `json:"quantity"`
	Variant   string          `json:"variant,omitempty"`
}

// LineTotal returns unit price times quantity.
func (li OrderLineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// RecomputeTotal sums the line totals of items.
func RecomputeTotal(items []OrderLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.LineTotal())
	}
	return total
}

// totalTolerance is half a cent: totals that differ by less are considered
// equal, which absorbs currency rounding during discount application.
var totalTolerance = decimal.New(5, -3)

// WithinTolerance reports whether a and b agree within currency rounding.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(totalTolerance)
}

// Transition is one applied status change, kept as an append-only audit trail.
type Transition struct {
	OrderID     string    `json:"order_id"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	CausationID string    `json:"causation_id"`
	CreatedAt   time.Time `json:"created_at"`
}
