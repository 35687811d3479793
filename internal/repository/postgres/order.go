package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/repository"
)

type orderStore struct {
	db *sql.DB
}

// NewOrderStore creates an OrderStore backed by Postgres. Per-order mutual
// exclusion during Mutate relies on row-level locking (SELECT ... FOR UPDATE).
func NewOrderStore(db *sql.DB) repository.OrderStore {
	return &orderStore{db: db}
}

const orderColumns = `id, buyer_id, external_reference, status, total_amount, discount_amount,
	payment_id, preference_id, reservation_id, coupon_code, shipping_snapshot, created_at`

func (r *orderStore) Create(ctx context.Context, o *entity.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.BuyerID, o.ExternalReference, o.Status, o.TotalAmount, o.DiscountAmount,
		o.PaymentID, o.PreferenceID, o.ReservationID, o.CouponCode, nullableJSON(o.ShippingSnapshot), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, variant)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, item.ProductID, item.Name, item.UnitPrice, item.Quantity, item.Variant,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *orderStore) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	return r.getWhere(ctx, "id", id)
}

func (r *orderStore) GetByExternalReference(ctx context.Context, ref string) (*entity.Order, error) {
	return r.getWhere(ctx, "external_reference", ref)
}

func (r *orderStore) getWhere(ctx context.Context, column, value string) (*entity.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	if o.Items, err = r.loadItems(ctx, r.db, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderStore) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	for i := range orders {
		if orders[i].Items, err = r.loadItems(ctx, r.db, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *orderStore) Mutate(ctx context.Context, externalReference string, fn func(o *entity.Order) (*entity.Transition, error)) (*entity.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Row lock serializes concurrent transitions on the same order.
	row := tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE external_reference = $1 FOR UPDATE`,
		externalReference)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order for update: %w", err)
	}

	if o.Items, err = r.loadItems(ctx, tx, o.ID); err != nil {
		return nil, err
	}

	transition, err := fn(o)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, payment_id = $2, preference_id = $3 WHERE id = $4`,
		o.Status, o.PaymentID, o.PreferenceID, o.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if transition != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_transitions (order_id, from_status, to_status, causation_id, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			transition.OrderID, transition.From, transition.To, transition.CausationID, transition.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to append order transition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return o, nil
}

func (r *orderStore) Transitions(ctx context.Context, orderID string) ([]entity.Transition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, from_status, to_status, causation_id, created_at
		 FROM order_transitions WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order transitions: %w", err)
	}
	defer rows.Close()

	var trail []entity.Transition
	for rows.Next() {
		var t entity.Transition
		if err := rows.Scan(&t.OrderID, &t.From, &t.To, &t.CausationID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order transition: %w", err)
		}
		trail = append(trail, t)
	}
	return trail, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *orderStore) loadItems(ctx context.Context, q queryer, orderID string) ([]entity.OrderLineItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT product_id, name, unit_price, quantity, variant
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []entity.OrderLineItem
	for rows.Next() {
		var item entity.OrderLineItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity, &item.Variant); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	var o entity.Order
	var snapshot []byte
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.ExternalReference, &o.Status, &o.TotalAmount, &o.DiscountAmount,
		&o.PaymentID, &o.PreferenceID, &o.ReservationID, &o.CouponCode, &snapshot, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ShippingSnapshot = snapshot
	return &o, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
