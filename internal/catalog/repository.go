// Package catalog stores the shop's products and promo codes in SQLite.
// The catalog is read-heavy and small; products are seeded by migration
// and edited out-of-band.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"

	"github.com/sondregut/pvelite/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrPromoInvalid    = errors.New("promo code is invalid or expired")
)

type Repository struct {
	db *sql.DB
}

type RepoInterface interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ValidatePromo(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error)
	Close() error
	RunMigrations(string) error
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT id, name, description, price_cents, image_url, created_at
		FROM products
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.PriceCents,
			&p.ImageURL,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, description, price_cents, image_url, created_at
		FROM products
		WHERE id = $1
	`

	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.ImageURL,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return p, nil
}

// ValidatePromo looks up a promo code (case-insensitive) and checks it is
// active and unexpired at now. Invalid codes return ErrPromoInvalid.
func (r *Repository) ValidatePromo(ctx context.Context, code string, now time.Time) (*domain.PromoCode, error) {
	query := `
		SELECT code, percent_off, active, expires_at
		FROM promo_codes
		WHERE code = $1
	`

	var (
		promo     domain.PromoCode
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, strings.ToUpper(code)).Scan(
		&promo.Code,
		&promo.PercentOff,
		&promo.Active,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromoInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query promo code: %w", err)
	}

	if expiresAt.Valid {
		promo.ExpiresAt = expiresAt.Time
	}

	if !promo.Active {
		return nil, ErrPromoInvalid
	}
	if expiresAt.Valid && !expiresAt.Time.After(now) {
		return nil, ErrPromoInvalid
	}

	return &promo, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
