package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/gateway"
	"github.com/solemates/commerce-backend/internal/inventory"
	"github.com/solemates/commerce-backend/internal/repository"
)

// CartItem is one client-submitted cart line.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

// BuyerContact identifies the buyer towards the gateway. ID is empty for
// guest checkout.
type BuyerContact struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CheckoutRequest is a cart ready to be turned into an order.
type CheckoutRequest struct {
	Items      []CartItem      `json:"items"`
	Buyer      BuyerContact    `json:"buyer"`
	Shipping   json.RawMessage `json:"shipping,omitempty"`
	CouponCode string          `json:"coupon_code,omitempty"`
}

// CheckoutResult is what the storefront needs to start the payment flow.
type CheckoutResult struct {
	OrderID           string          `json:"order_id"`
	ExternalReference string          `json:"external_reference"`
	PreferenceID      string          `json:"preference_id"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

// Checkout turns a cart into a durable pending order with a gateway payment
// preference: validate, soft-reserve stock, freeze prices, persist, then ask
// the gateway. Any failure after the reservation releases it before
// returning.
type Checkout struct {
	products repository.ProductStore
	coupons  repository.CouponStore
	guard    *inventory.Guard
	ledger   *Ledger
	gateway  gateway.PaymentGateway

	currency        string
	notificationURL string
	backURLs        gateway.BackURLs
	maxConcurrent   int
}

func NewCheckout(
	products repository.ProductStore,
	coupons repository.CouponStore,
	guard *inventory.Guard,
	ledger *Ledger,
	gw gateway.PaymentGateway,
	notificationURL string,
	backURLs gateway.BackURLs,
) *Checkout {
	return &Checkout{
		products:        products,
		coupons:         coupons,
		guard:           guard,
		ledger:          ledger,
		gateway:         gw,
		currency:        "BRL",
		notificationURL: notificationURL,
		backURLs:        backURLs,
		maxConcurrent:   8,
	}
}

func (s *Checkout) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if len(req.Items) == 0 {
		return nil, &entity.ValidationError{Msg: "cart is empty"}
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &entity.ValidationError{
				Msg: fmt.Sprintf("quantity for product %s must be positive", item.ProductID),
			}
		}
	}

	lines, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	coupon, err := s.resolveCoupon(ctx, req.CouponCode)
	if err != nil {
		return nil, err
	}

	reserved := make([]inventory.ReservedItem, len(req.Items))
	for i, item := range req.Items {
		reserved[i] = inventory.ReservedItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	reservationID, err := s.guard.Reserve(ctx, reserved)
	if err != nil {
		return nil, err
	}

	total := entity.RecomputeTotal(lines)
	discount := decimal.Zero
	if coupon != nil {
		discounted := coupon.Apply(total)
		discount = total.Sub(discounted)
		total = discounted
	}

	externalReference := fmt.Sprintf("ord-%d-%s", time.Now().UnixNano(), uuid.New().String())

	order := &entity.Order{
		BuyerID:           req.Buyer.ID,
		ExternalReference: externalReference,
		TotalAmount:       total,
		DiscountAmount:    discount,
		ReservationID:     reservationID,
		CouponCode:        couponCode(coupon),
		ShippingSnapshot:  req.Shipping,
		Items:             lines,
	}
	if err := s.ledger.Create(ctx, order); err != nil {
		s.releaseReservation(ctx, reservationID)
		return nil, err
	}

	preferenceID, err := s.gateway.CreatePreference(ctx, s.preferenceRequest(order, req.Buyer))
	if err != nil {
		// Never leave a dangling reservation behind a failed checkout. The
		// rejected transition keeps the attempt on the audit trail.
		s.releaseReservation(ctx, reservationID)
		if _, _, terr := s.ledger.Transition(ctx, externalReference, entity.StatusRejected, "gateway-failure"); terr != nil {
			slog.Error("Failed to reject order after gateway failure",
				"external_reference", externalReference, "err", terr)
		}
		return nil, err
	}

	if err := s.ledger.SetPreferenceID(ctx, externalReference, preferenceID); err != nil {
		slog.Error("Failed to store preference id", "external_reference", externalReference, "err", err)
	}

	slog.Info("Checkout completed", "order_id", order.ID,
		"external_reference", externalReference, "preference_id", preferenceID)

	return &CheckoutResult{
		OrderID:           order.ID,
		ExternalReference: externalReference,
		PreferenceID:      preferenceID,
		TotalAmount:       total,
	}, nil
}

// resolveLines freezes the current catalog price and name of every cart item
// into order lines. Lookups run concurrently with a bounded group.
func (s *Checkout) resolveLines(ctx context.Context, items []CartItem) ([]entity.OrderLineItem, error) {
	lines := make([]entity.OrderLineItem, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range items {
		g.Go(func() error {
			item := items[idx]
			p, err := s.products.GetByID(ctx, item.ProductID)
			if errors.Is(err, entity.ErrNotFound) {
				return &entity.ValidationError{Msg: fmt.Sprintf("product %s is not available", item.ProductID)}
			}
			if err != nil {
				return fmt.Errorf("failed to get product %s: %w", item.ProductID, err)
			}
			if !p.Visible {
				return &entity.ValidationError{Msg: fmt.Sprintf("product %s is not available", item.ProductID)}
			}

			lines[idx] = entity.OrderLineItem{
				ProductID: p.ID,
				Name:      p.Name,
				UnitPrice: p.Price,
				Quantity:  item.Quantity,
				Variant:   item.Variant,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Checkout) resolveCoupon(ctx context.Context, code string) (*entity.Coupon, error) {
	if code == "" {
		return nil, nil
	}
	coupon, err := s.coupons.GetByCode(ctx, code)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, &entity.ValidationError{Msg: "coupon is not valid"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	if !coupon.Active {
		return nil, &entity.ValidationError{Msg: "coupon is not valid"}
	}
	if coupon.Expired(time.Now()) {
		return nil, &entity.ValidationError{Msg: "coupon has expired"}
	}
	return coupon, nil
}

func (s *Checkout) preferenceRequest(o *entity.Order, buyer BuyerContact) gateway.PreferenceRequest {
	items := make([]gateway.PreferenceItem, len(o.Items))
	for i, line := range o.Items {
		items[i] = gateway.PreferenceItem{
			ID:        line.ProductID,
			Title:     line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Currency:  s.currency,
		}
	}
	return gateway.PreferenceRequest{
		Items:             items,
		PayerEmail:        buyer.Email,
		PayerName:         buyer.Name,
		ExternalReference: o.ExternalReference,
		NotificationURL:   s.notificationURL,
		BackURLs:          s.backURLs,
	}
}

func (s *Checkout) releaseReservation(ctx context.Context, reservationID string) {
	if err := s.guard.Release(ctx, reservationID); err != nil {
		slog.Error("Failed to release reservation", "reservation_id", reservationID, "err", err)
	}
}

func couponCode(c *entity.Coupon) string {
	if c == nil {
		return ""
	}
	return c.Code
}
