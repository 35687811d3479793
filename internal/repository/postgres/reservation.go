package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/solemates/commerce-backend/internal/inventory"
)

type reservationStore struct {
	db *sql.DB
}

// NewReservationStore creates a ReservationStore backed by Postgres. The
// state column makes commit and release work from any instance, not just the
// one that took the reservation, and survives restarts between checkout and
// the payment webhook.
func NewReservationStore(db *sql.DB) inventory.ReservationStore {
	return &reservationStore{db: db}
}

func (r *reservationStore) Put(ctx context.Context, id string, items []inventory.ReservedItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal reservation items: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO stock_reservations (id, items, state) VALUES ($1, $2, $3)`,
		id, payload, inventory.StateHeld,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

func (r *reservationStore) Take(ctx context.Context, id, state string) ([]inventory.ReservedItem, bool, error) {
	// The conditional update is the atomic claim: only one caller can move a
	// held reservation to a final state.
	row := r.db.QueryRowContext(ctx,
		`UPDATE stock_reservations SET state = $1 WHERE id = $2 AND state = $3 RETURNING items`,
		state, id, inventory.StateHeld,
	)

	var payload []byte
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to take reservation: %w", err)
	}

	var items []inventory.ReservedItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal reservation items: %w", err)
	}
	return items, true, nil
}

func (r *reservationStore) Restore(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE stock_reservations SET state = $1 WHERE id = $2`,
		inventory.StateHeld, id,
	)
	if err != nil {
		return fmt.Errorf("failed to restore reservation: %w", err)
	}
	return nil
}
