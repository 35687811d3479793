package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/repository"
)

type siteConfigStore struct {
	db *sql.DB
}

// NewSiteConfigStore creates a SiteConfigStore backed by Postgres. Every
// update inserts a new version; the serial primary key is the version number.
func NewSiteConfigStore(db *sql.DB) repository.SiteConfigStore {
	return &siteConfigStore{db: db}
}

func (r *siteConfigStore) Latest(ctx context.Context) (*entity.SiteConfig, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT version, site_name, primary_color, secondary_color, bg_light, bg_dark, updated_at
		 FROM site_config ORDER BY version DESC LIMIT 1`)

	var cfg entity.SiteConfig
	err := row.Scan(&cfg.Version, &cfg.SiteName, &cfg.PrimaryColor, &cfg.SecondaryColor,
		&cfg.BackgroundLight, &cfg.BackgroundDark, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query site config: %w", err)
	}
	return &cfg, nil
}

func (r *siteConfigStore) Append(ctx context.Context, cfg *entity.SiteConfig) error {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO site_config (site_name, primary_color, secondary_color, bg_light, bg_dark, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING version`,
		cfg.SiteName, cfg.PrimaryColor, cfg.SecondaryColor, cfg.BackgroundLight, cfg.BackgroundDark, cfg.UpdatedAt,
	)
	if err := row.Scan(&cfg.Version); err != nil {
		return fmt.Errorf("failed to insert site config: %w", err)
	}
	return nil
}
