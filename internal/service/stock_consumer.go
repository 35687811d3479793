package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/inventory"
)

// StockConsumer finalizes reservations from order lifecycle events: approval
// commits the durable stock decrement, rejection releases the hold. Both
// guard operations are idempotent, so redelivered events are harmless.
type StockConsumer struct {
	guard *inventory.Guard
}

func NewStockConsumer(guard *inventory.Guard) *StockConsumer {
	return &StockConsumer{guard: guard}
}

// Handle is a messaging.Handler for the order events topic.
func (c *StockConsumer) Handle(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case entity.OrderApproved{}.EventType():
		var e entity.OrderApproved
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("failed to unmarshal OrderApproved: %w", err)
		}
		if e.ReservationID == "" {
			slog.Warn("OrderApproved without reservation id", "order_id", e.OrderID)
			return nil
		}
		slog.Info("Committing reservation", "order_id", e.OrderID, "reservation_id", e.ReservationID)
		return c.guard.Commit(ctx, e.ReservationID)

	case entity.OrderRejected{}.EventType():
		var e entity.OrderRejected
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("failed to unmarshal OrderRejected: %w", err)
		}
		if e.ReservationID == "" {
			return nil
		}
		slog.Info("Releasing reservation", "order_id", e.OrderID, "reservation_id", e.ReservationID)
		return c.guard.Release(ctx, e.ReservationID)

	default:
		return nil
	}
}
