package inventory

import (
	"context"
	"sync"
)

// ReservationCounter tracks the reserved quantity per product, the soft half
// of the two-counter stock model (durable stock lives in the catalog store).
// Reserve must be atomic per product: under concurrent checkouts for the last
// unit, exactly one caller may win.
type ReservationCounter interface {
	// Reserve adds qty to the product's reserved count if
	// stock - reserved >= qty. It reports whether the reservation was taken
	// and returns the reserved count observed.
	Reserve(ctx context.Context, productID string, qty, stock int) (bool, int, error)
	// Release subtracts qty from the product's reserved count.
	Release(ctx context.Context, productID string, qty int) error
	// Reserved returns the current reserved count for the product.
	Reserved(ctx context.Context, productID string) (int, error)
}

// MemoryCounter is a process-local ReservationCounter.
type MemoryCounter struct {
	mu       sync.Mutex
	reserved map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{reserved: make(map[string]int)}
}

func (c *MemoryCounter) Reserve(ctx context.Context, productID string, qty, stock int) (bool, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reserved := c.reserved[productID]
	if stock-reserved < qty {
		return false, reserved, nil
	}
	c.reserved[productID] = reserved + qty
	return true, reserved + qty, nil
}

func (c *MemoryCounter) Release(ctx context.Context, productID string, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	reserved := c.reserved[productID] - qty
	if reserved < 0 {
		reserved = 0
	}
	c.reserved[productID] = reserved
	return nil
}

func (c *MemoryCounter) Reserved(ctx context.Context, productID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reserved[productID], nil
}
