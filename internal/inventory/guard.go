// Package inventory prevents overselling while orders are in flight. Stock
// is modeled as two counters per product: the durable stock column in the
// catalog store and a soft reserved count. Available stock is their
// difference; the durable column only changes when a reservation commits.
package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/solemates/commerce-backend/internal/entity"
)

// StockStore is the slice of the catalog the guard needs.
type StockStore interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
}

// ReservedItem is one product/quantity pair held by a reservation.
type ReservedItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Guard hands out soft stock reservations and turns them into durable stock
// decrements (Commit) or returns them to availability (Release). Commit and
// Release are idempotent: repeating either after the first effective call is
// a no-op, matching the ledger's duplicate-notification tolerance.
type Guard struct {
	products     StockStore
	counter      ReservationCounter
	reservations ReservationStore
}

func NewGuard(products StockStore, counter ReservationCounter, reservations ReservationStore) *Guard {
	return &Guard{
		products:     products,
		counter:      counter,
		reservations: reservations,
	}
}

// Reserve takes a soft reservation for every item or none at all. On the
// first item that cannot be reserved, everything reserved so far is rolled
// back and an OutOfStockError naming the product is returned.
func (g *Guard) Reserve(ctx context.Context, items []ReservedItem) (string, error) {
	for i, item := range items {
		p, err := g.products.GetByID(ctx, item.ProductID)
		if err != nil {
			g.rollback(ctx, items[:i])
			return "", fmt.Errorf("failed to load product %s: %w", item.ProductID, err)
		}

		ok, reserved, err := g.counter.Reserve(ctx, item.ProductID, item.Quantity, p.Stock)
		if err != nil {
			g.rollback(ctx, items[:i])
			return "", fmt.Errorf("failed to reserve product %s: %w", item.ProductID, err)
		}
		if !ok {
			g.rollback(ctx, items[:i])
			return "", &entity.OutOfStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.Stock - reserved,
			}
		}

		// Re-read the durable stock after the increment: a commit running in
		// parallel decrements stock before freeing its reserved count, so the
		// snapshot read above may be stale.
		fresh, err := g.products.GetByID(ctx, item.ProductID)
		if err != nil {
			g.rollbackItem(ctx, item)
			g.rollback(ctx, items[:i])
			return "", fmt.Errorf("failed to re-read product %s: %w", item.ProductID, err)
		}
		if fresh.Stock < reserved {
			g.rollbackItem(ctx, item)
			g.rollback(ctx, items[:i])
			available := fresh.Stock - (reserved - item.Quantity)
			if available < 0 {
				available = 0
			}
			return "", &entity.OutOfStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			}
		}
	}

	id := uuid.New().String()
	if err := g.reservations.Put(ctx, id, items); err != nil {
		g.rollback(ctx, items)
		return "", fmt.Errorf("failed to store reservation: %w", err)
	}
	return id, nil
}

// Commit turns a held reservation into a durable stock decrement and frees
// the reserved count. Committing an already committed or released
// reservation is a no-op.
func (g *Guard) Commit(ctx context.Context, reservationID string) error {
	items, ok, err := g.reservations.Take(ctx, reservationID, StateCommitted)
	if err != nil {
		return &entity.TransientError{Err: err}
	}
	if !ok {
		return nil
	}

	for i, item := range items {
		applied, err := g.products.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			if i == 0 {
				// Nothing decremented yet; put the reservation back so a
				// redelivered event can retry the whole commit.
				if rerr := g.reservations.Restore(ctx, reservationID); rerr != nil {
					slog.Error("Failed to restore reservation",
						"reservation_id", reservationID, "err", rerr)
				}
				return &entity.TransientError{Err: err}
			}
			// Partially committed; retrying would double-decrement the
			// earlier lines, so log and move on.
			slog.Error("Stock decrement failed mid-commit",
				"product_id", item.ProductID, "err", err)
			continue
		}
		if !applied {
			// A held reservation guarantees availability; reaching this
			// means the durable stock drifted underneath us. The
			// conditional update already kept stock at >= 0.
			slog.Error("Stock decrement skipped, durable stock below reservation",
				"product_id", item.ProductID, "quantity", item.Quantity)
		}
		if err := g.counter.Release(ctx, item.ProductID, item.Quantity); err != nil {
			slog.Error("Failed to free reserved count after commit",
				"product_id", item.ProductID, "err", err)
		}
	}
	return nil
}

// Release returns a held reservation to availability. Releasing an already
// released or committed reservation is a no-op.
func (g *Guard) Release(ctx context.Context, reservationID string) error {
	items, ok, err := g.reservations.Take(ctx, reservationID, StateReleased)
	if err != nil {
		return &entity.TransientError{Err: err}
	}
	if !ok {
		return nil
	}

	for _, item := range items {
		if err := g.counter.Release(ctx, item.ProductID, item.Quantity); err != nil {
			if rerr := g.reservations.Restore(ctx, reservationID); rerr != nil {
				slog.Error("Failed to restore reservation",
					"reservation_id", reservationID, "err", rerr)
			}
			return &entity.TransientError{Err: err}
		}
	}
	return nil
}

// Available returns stock minus reserved for a product.
func (g *Guard) Available(ctx context.Context, productID string) (int, error) {
	p, err := g.products.GetByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	reserved, err := g.counter.Reserved(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Stock - reserved, nil
}

func (g *Guard) rollbackItem(ctx context.Context, item ReservedItem) {
	if err := g.counter.Release(ctx, item.ProductID, item.Quantity); err != nil {
		slog.Error("Failed to roll back reservation",
			"product_id", item.ProductID, "err", err)
	}
}

func (g *Guard) rollback(ctx context.Context, items []ReservedItem) {
	for _, item := range items {
		g.rollbackItem(ctx, item)
	}
}
