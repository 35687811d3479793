package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/messaging"
	"github.com/solemates/commerce-backend/internal/repository"
)

// Ledger owns the canonical order state machine. All status changes go
// through Transition, which serializes per order and tolerates duplicate
// requests; orders are never deleted.
type Ledger struct {
	orders    repository.OrderStore
	publisher messaging.Publisher
}

func NewLedger(orders repository.OrderStore, publisher messaging.Publisher) *Ledger {
	return &Ledger{orders: orders, publisher: publisher}
}

// Create persists a new order in pending state. The order's total must match
// the recomputed line sum, net of the discount, within rounding tolerance.
func (l *Ledger) Create(ctx context.Context, o *entity.Order) error {
	if len(o.Items) == 0 {
		return &entity.ValidationError{Msg: "order must have at least one item"}
	}

	expected := entity.RecomputeTotal(o.Items).Sub(o.DiscountAmount)
	if !entity.WithinTolerance(o.TotalAmount, expected) {
		return &entity.ValidationError{
			Msg: fmt.Sprintf("total %s does not match line sum %s", o.TotalAmount, expected),
		}
	}

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.Status = entity.StatusPending
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	if err := l.orders.Create(ctx, o); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	slog.Info("Order created", "order_id", o.ID, "external_reference", o.ExternalReference,
		"total", o.TotalAmount, "items", len(o.Items))
	return nil
}

// Transition moves the order identified by its external reference to target.
// If the order already is in target the call is a successful no-op (applied
// is false), which makes duplicate webhook deliveries safe. An unreachable
// target fails with InvalidTransitionError and leaves state unchanged.
// causationID records what caused the change (typically the gateway payment
// id) and is stored on the audit trail; on the first terminal transition it
// also becomes the order's payment id.
func (l *Ledger) Transition(ctx context.Context, externalReference string, target entity.Status, causationID string) (*entity.Order, bool, error) {
	if !target.Valid() {
		return nil, false, &entity.ValidationError{Msg: fmt.Sprintf("unknown status %q", target)}
	}

	applied := false
	o, err := l.orders.Mutate(ctx, externalReference, func(o *entity.Order) (*entity.Transition, error) {
		if o.Status == target {
			return nil, nil // duplicate notification, no-op
		}
		if !o.Status.CanTransition(target) {
			return nil, &entity.InvalidTransitionError{From: o.Status, To: target}
		}

		transition := &entity.Transition{
			OrderID:     o.ID,
			From:        o.Status,
			To:          target,
			CausationID: causationID,
			CreatedAt:   time.Now(),
		}
		o.Status = target
		if o.PaymentID == "" && causationID != "" &&
			(target == entity.StatusApproved || target == entity.StatusRejected) {
			o.PaymentID = causationID
		}
		applied = true
		return transition, nil
	})
	if err != nil {
		return nil, false, err
	}

	if applied {
		l.publishTransition(ctx, o)
	}
	return o, applied, nil
}

// Get returns an order by id.
func (l *Ledger) Get(ctx context.Context, orderID string) (*entity.Order, error) {
	return l.orders.GetByID(ctx, orderID)
}

// GetByExternalReference returns an order by its external reference.
func (l *Ledger) GetByExternalReference(ctx context.Context, ref string) (*entity.Order, error) {
	return l.orders.GetByExternalReference(ctx, ref)
}

// Recent returns the latest orders.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.orders.FindRecent(ctx, limit)
}

// Trail returns the order's transition audit trail.
func (l *Ledger) Trail(ctx context.Context, orderID string) ([]entity.Transition, error) {
	return l.orders.Transitions(ctx, orderID)
}

// SetPreferenceID stores the gateway preference id on the order.
func (l *Ledger) SetPreferenceID(ctx context.Context, externalReference, preferenceID string) error {
	_, err := l.orders.Mutate(ctx, externalReference, func(o *entity.Order) (*entity.Transition, error) {
		o.PreferenceID = preferenceID
		return nil, nil
	})
	return err
}

func (l *Ledger) publishTransition(ctx context.Context, o *entity.Order) {
	var event entity.Event
	switch o.Status {
	case entity.StatusApproved:
		event = entity.OrderApproved{
			OrderID:           o.ID,
			ExternalReference: o.ExternalReference,
			ReservationID:     o.ReservationID,
			PaymentID:         o.PaymentID,
		}
	case entity.StatusRejected:
		event = entity.OrderRejected{
			OrderID:           o.ID,
			ExternalReference: o.ExternalReference,
			ReservationID:     o.ReservationID,
			PaymentID:         o.PaymentID,
		}
	default:
		return
	}

	// The transition is already durable; a publish failure must not undo it.
	if err := l.publisher.PublishEvent(ctx, messaging.TopicOrderEvents, o.ID, event); err != nil {
		slog.Error("Failed to publish order event", "order_id", o.ID,
			"event_type", event.EventType(), "err", err)
	}
}
