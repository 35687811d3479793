// Package gateway talks to the external payment provider. The provider holds
// the payment preference; we only keep its identifier and correlate later
// webhook callbacks through the order's external reference.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// PreferenceItem is one purchasable line sent to the gateway.
type PreferenceItem struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Currency  string          `json:"currency_id"`
}

// BackURLs are the storefront pages the buyer returns to after paying.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest describes the checkout preference to create.
type PreferenceRequest struct {
	Items             []PreferenceItem
	PayerEmail        string
	PayerName         string
	ExternalReference string
	NotificationURL   string
	BackURLs          BackURLs
}

// Payment is the gateway's view of a payment tied to one of our orders.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
}

// PaymentGateway is the boundary to the external payment provider. Failures
// are classified as entity.GatewayError before crossing this boundary.
type PaymentGateway interface {
	// CreatePreference registers a checkout preference and returns its id.
	CreatePreference(ctx context.Context, req PreferenceRequest) (string, error)
	// GetPayment fetches the current state of a payment, including the
	// external reference it was created with.
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}
