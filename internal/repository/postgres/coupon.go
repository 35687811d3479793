package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/repository"
)

type couponStore struct {
	db *sql.DB
}

// NewCouponStore creates a CouponStore backed by Postgres.
func NewCouponStore(db *sql.DB) repository.CouponStore {
	return &couponStore{db: db}
}

func (r *couponStore) GetByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT code, discount_percent, expiration_date, active FROM coupons WHERE code = $1`,
		strings.ToUpper(code))

	var c entity.Coupon
	var expires sql.NullTime
	err := row.Scan(&c.Code, &c.DiscountPercent, &expires, &c.Active)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}
	if expires.Valid {
		c.ExpiresAt = expires.Time
	}
	return &c, nil
}

func (r *couponStore) Save(ctx context.Context, c *entity.Coupon) error {
	var expires any
	if !c.ExpiresAt.IsZero() {
		expires = c.ExpiresAt
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO coupons (code, discount_percent, expiration_date, active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (code) DO UPDATE SET
			discount_percent = EXCLUDED.discount_percent,
			expiration_date = EXCLUDED.expiration_date,
			active = EXCLUDED.active`,
		strings.ToUpper(c.Code), c.DiscountPercent, expires, c.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save coupon: %w", err)
	}
	return nil
}
