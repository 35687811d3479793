package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solemates/commerce-backend/internal/entity"
)

func TestCreatePreference(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"id": "pref-abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	id, err := c.CreatePreference(context.Background(), PreferenceRequest{
		Items: []PreferenceItem{
			{ID: "p1", Title: "Street Runner", Quantity: 2,
				UnitPrice: decimal.RequireFromString("50.00"), Currency: "BRL"},
		},
		PayerEmail:        "buyer@example.com",
		ExternalReference: "ord-123",
		NotificationURL:   "http://api.example.com/api/payment/webhook",
		BackURLs:          BackURLs{Success: "http://shop.example.com/success.html"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-abc", id)

	assert.Equal(t, "ord-123", got["external_reference"])
	assert.Equal(t, "approved", got["auto_return"])
	assert.Equal(t, "http://api.example.com/api/payment/webhook", got["notification_url"])
	payer := got["payer"].(map[string]any)
	assert.Equal(t, "buyer@example.com", payer["email"])
	items := got["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Street Runner", item["title"])
	assert.Equal(t, "BRL", item["currency_id"])
}

func TestCreatePreferenceEmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	_, err := c.CreatePreference(context.Background(), PreferenceRequest{})
	var gerr *entity.GatewayError
	assert.ErrorAs(t, err, &gerr)
}

func TestCreatePreferenceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-token")
	_, err := c.CreatePreference(context.Background(), PreferenceRequest{})
	var gerr *entity.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Error(), "401")
}

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/42", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		// Mercado Pago returns numeric payment ids.
		json.NewEncoder(w).Encode(map[string]any{
			"id":                 42,
			"status":             "approved",
			"external_reference": "ord-123",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	p, err := c.GetPayment(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", p.ID)
	assert.Equal(t, "approved", p.Status)
	assert.Equal(t, "ord-123", p.ExternalReference)
}

func TestGetPaymentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-token")
	_, err := c.GetPayment(context.Background(), "999")
	var gerr *entity.GatewayError
	assert.ErrorAs(t, err, &gerr)
}
