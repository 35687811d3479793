package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog product. The checkout core reads it to freeze prices
// and validate visibility; the only write path it needs is the conditional
// stock decrement performed by the inventory guard.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	OldPrice    decimal.Decimal `json:"old_price"` // zero when not on sale
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Visible     bool            `json:"visible"`
	CreatedAt   time.Time       `json:"created_at"`
}
