package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/repository"
)

type productStore struct {
	db *sql.DB
}

// NewProductStore creates a ProductStore backed by Postgres.
func NewProductStore(db *sql.DB) repository.ProductStore {
	return &productStore{db: db}
}

const productColumns = `id, name, description, price, old_price, image_url, category, stock, visible, created_at`

func (r *productStore) FindAll(ctx context.Context, limit int) ([]entity.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		var p entity.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *productStore) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	var p entity.Product
	err := scanProduct(row, &p)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &p, nil
}

func (r *productStore) Save(ctx context.Context, p *entity.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			price = EXCLUDED.price, old_price = EXCLUDED.old_price,
			image_url = EXCLUDED.image_url, category = EXCLUDED.category,
			stock = EXCLUDED.stock, visible = EXCLUDED.visible`,
		p.ID, p.Name, p.Description, p.Price, p.OldPrice, p.ImageURL, p.Category, p.Stock, p.Visible, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (r *productStore) Seed(ctx context.Context, products []entity.Product) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return nil
	}
	for i := range products {
		if err := r.Save(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *productStore) DecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`,
		qty, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update product stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

func scanProduct(row rowScanner, p *entity.Product) error {
	return row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.OldPrice,
		&p.ImageURL, &p.Category, &p.Stock, &p.Visible, &p.CreatedAt,
	)
}
