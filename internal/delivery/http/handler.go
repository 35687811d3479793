package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/gateway"
	"github.com/solemates/commerce-backend/internal/repository"
	"github.com/solemates/commerce-backend/internal/service"
)

// Handler handles HTTP requests for the application.
type Handler struct {
	checkout   *service.Checkout
	ledger     *service.Ledger
	reconciler *service.Reconciler
	gateway    gateway.PaymentGateway
	products   repository.ProductStore
	settings   repository.SiteConfigStore
	coupons    repository.CouponStore
}

func NewHandler(
	checkout *service.Checkout,
	ledger *service.Ledger,
	reconciler *service.Reconciler,
	gw gateway.PaymentGateway,
	products repository.ProductStore,
	settings repository.SiteConfigStore,
	coupons repository.CouponStore,
) *Handler {
	return &Handler{
		checkout:   checkout,
		ledger:     ledger,
		reconciler: reconciler,
		gateway:    gw,
		products:   products,
		settings:   settings,
		coupons:    coupons,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.handleCheckout)
	mux.HandleFunc("POST /api/payment/webhook", h.handleWebhook)
	mux.HandleFunc("GET /api/orders", h.handleGetOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /api/orders/{id}/ship", h.handleShipOrder)
	mux.HandleFunc("GET /api/products", h.handleGetProducts)
	mux.HandleFunc("GET /api/products/{id}", h.handleGetProduct)
	mux.HandleFunc("GET /api/settings", h.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.handleUpdateSettings)
	mux.HandleFunc("POST /api/coupons/validate", h.handleValidateCoupon)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &entity.ValidationError{Msg: "invalid request body"})
		return
	}

	result, err := h.checkout.Checkout(r.Context(), req)
	if err != nil {
		slog.Error("Checkout failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// webhookBody is the gateway's notification payload. The payment id may also
// arrive via the data.id query parameter.
type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var body webhookBody
	_ = json.NewDecoder(r.Body).Decode(&body) // some notifications carry no body

	notificationType := body.Type
	if notificationType == "" {
		notificationType = r.URL.Query().Get("type")
	}
	paymentID := body.Data.ID.String()
	if paymentID == "" || paymentID == "0" {
		paymentID = r.URL.Query().Get("data.id")
	}

	if notificationType != "payment" || paymentID == "" {
		// Not a payment notification; ack so the gateway stops resending.
		w.WriteHeader(http.StatusOK)
		return
	}

	payment, err := h.gateway.GetPayment(r.Context(), paymentID)
	if err != nil {
		slog.Error("Failed to fetch payment for webhook", "payment_id", paymentID, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	slog.Info("Webhook received", "payment_id", payment.ID, "status", payment.Status,
		"external_reference", payment.ExternalReference)

	if err := h.reconciler.Reconcile(r.Context(), payment.ID, payment.ExternalReference, payment.Status); err != nil {
		// Transient: withhold the ack so the gateway retries.
		slog.Warn("Webhook reconciliation deferred", "payment_id", payment.ID, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	orders, err := h.ledger.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to get orders", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleShipOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	updated, _, err := h.ledger.Transition(r.Context(), order.ExternalReference, entity.StatusShipped, "operator")
	if err != nil {
		slog.Error("Failed to ship order", "order_id", order.ID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.FindAll(r.Context(), 20)
	if err != nil {
		slog.Error("Failed to get products", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": products})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Latest(r.Context())
	if errors.Is(err, entity.ErrNotFound) {
		defaults := entity.DefaultSiteConfig()
		writeJSON(w, http.StatusOK, defaults)
		return
	}
	if err != nil {
		slog.Error("Failed to get site config", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var cfg entity.SiteConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, &entity.ValidationError{Msg: "invalid request body"})
		return
	}
	cfg.UpdatedAt = time.Now()

	if err := h.settings.Append(r.Context(), &cfg); err != nil {
		slog.Error("Failed to update site config", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, &entity.ValidationError{Msg: "coupon code is required"})
		return
	}

	coupon, err := h.coupons.GetByCode(r.Context(), req.Code)
	if errors.Is(err, entity.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"valid": false, "message": "coupon is not valid"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if !coupon.Active || coupon.Expired(time.Now()) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "message": "coupon has expired"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":            true,
		"code":             coupon.Code,
		"discount_percent": coupon.DiscountPercent,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var (
		validation *entity.ValidationError
		outOfStock *entity.OutOfStockError
		gwErr      *entity.GatewayError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Msg})
	case errors.Is(err, entity.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.As(err, &outOfStock):
		writeJSON(w, http.StatusConflict, map[string]string{"error": outOfStock.Error()})
	case errors.As(err, &gwErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment gateway unavailable, try again"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// EnableCORS is a middleware to allow the storefront to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
