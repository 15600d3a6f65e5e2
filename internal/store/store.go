package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kiosk-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// NextOrderNumber increments and returns the counter for a site in a single
// transaction. A missing counter row reads as zero. The row lock serializes
// concurrent callers, so no two commits observe the same prior value.
func (s *Store) NextOrderNumber(ctx context.Context, siteKey string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const lockQuery = "SELECT current FROM counters WHERE site_key = $1 FOR UPDATE"

	var current int64
	err = tx.GetContext(ctx, &current, lockQuery, siteKey)
	if err == sql.ErrNoRows {
		// FOR UPDATE on a missing row locks nothing, so create the
		// counter first and take the lock on the second read. Two
		// concurrent first orders then serialize on the row.
		_, err = tx.ExecContext(ctx,
			"INSERT INTO counters (site_key, current) VALUES ($1, 0) ON CONFLICT (site_key) DO NOTHING",
			siteKey)
		if err == nil {
			err = tx.GetContext(ctx, &current, lockQuery, siteKey)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock counter: %w", err)
	}

	next := current + 1
	_, err = tx.ExecContext(ctx,
		"UPDATE counters SET current = $1 WHERE site_key = $2", next, siteKey)
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit counter: %w", err)
	}

	return next, nil
}

// GetProducts retrieves the catalog for a site, display order first
func (s *Store) GetProducts(ctx context.Context, siteKey string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE site_key = $1 ORDER BY sort_index, product_id", siteKey)
	return products, err
}

// GetSections retrieves the display sections for a site
func (s *Store) GetSections(ctx context.Context, siteKey string) ([]models.Section, error) {
	var sections []models.Section
	err := s.db.SelectContext(ctx, &sections,
		"SELECT * FROM sections WHERE site_key = $1 ORDER BY sort_index", siteKey)
	return sections, err
}

// IsSiteOpen reports whether a site currently accepts orders.
// A site with no settings row is treated as open.
func (s *Store) IsSiteOpen(ctx context.Context, siteKey string) (bool, error) {
	var isOpen bool
	err := s.db.GetContext(ctx, &isOpen,
		"SELECT is_open FROM site_settings WHERE site_key = $1", siteKey)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return isOpen, nil
}

// ResolveSiteKey maps a printed QR code to its site
func (s *Store) ResolveSiteKey(ctx context.Context, code string) (string, error) {
	var siteKey string
	err := s.db.GetContext(ctx, &siteKey,
		"SELECT site_key FROM qr_codes WHERE code = $1 AND active = TRUE LIMIT 1", code)
	if err == sql.ErrNoRows {
		return "", models.ErrSiteNotFound
	}
	if err != nil {
		return "", err
	}
	return siteKey, nil
}
