package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return db, nil
}

func migrateDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price NUMERIC(10,2) NOT NULL DEFAULT 0,
			old_price NUMERIC(10,2) NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			stock INT NOT NULL DEFAULT 0,
			visible BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			buyer_id TEXT NOT NULL DEFAULT '',
			external_reference TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'pending',
			total_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
			discount_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
			payment_id TEXT NOT NULL DEFAULT '',
			preference_id TEXT NOT NULL DEFAULT '',
			reservation_id TEXT NOT NULL DEFAULT '',
			coupon_code TEXT NOT NULL DEFAULT '',
			shipping_snapshot JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			product_id TEXT NOT NULL,
			name TEXT NOT NULL,
			unit_price NUMERIC(10,2) NOT NULL DEFAULT 0,
			quantity INT NOT NULL DEFAULT 1,
			variant TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS order_transitions (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			causation_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS stock_reservations (
			id TEXT PRIMARY KEY,
			items JSONB NOT NULL,
			state TEXT NOT NULL DEFAULT 'held',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS site_config (
			version SERIAL PRIMARY KEY,
			site_name TEXT NOT NULL,
			primary_color TEXT NOT NULL,
			secondary_color TEXT NOT NULL,
			bg_light TEXT NOT NULL,
			bg_dark TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS coupons (
			code TEXT PRIMARY KEY,
			discount_percent INT NOT NULL,
			expiration_date TIMESTAMP,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);
	`)
	return err
}
