package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/solemates/commerce-backend/internal/entity"
)

// Client is an HTTP implementation of PaymentGateway against the Mercado
// Pago REST API.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type preferenceBody struct {
	Items             []PreferenceItem `json:"items"`
	Payer             preferencePayer  `json:"payer"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return"`
	NotificationURL   string           `json:"notification_url"`
	ExternalReference string           `json:"external_reference"`
}

type preferencePayer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (string, error) {
	body := preferenceBody{
		Items:             req.Items,
		Payer:             preferencePayer{Email: req.PayerEmail, Name: req.PayerName},
		BackURLs:          req.BackURLs,
		AutoReturn:        "approved",
		NotificationURL:   req.NotificationURL,
		ExternalReference: req.ExternalReference,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &entity.GatewayError{Op: "create preference", Err: err}
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", payload, &resp); err != nil {
		return "", &entity.GatewayError{Op: "create preference", Err: err}
	}
	if resp.ID == "" {
		return "", &entity.GatewayError{Op: "create preference", Err: fmt.Errorf("empty preference id in response")}
	}
	return resp.ID, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var resp struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		ExternalReference string      `json:"external_reference"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &resp); err != nil {
		return nil, &entity.GatewayError{Op: "get payment", Err: err}
	}
	return &Payment{
		ID:                resp.ID.String(),
		Status:            resp.Status,
		ExternalReference: resp.ExternalReference,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
