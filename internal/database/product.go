package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/variantlab/variant-scraper/internal/models"
	"github.com/variantlab/variant-scraper/internal/variants"
)

type ProductStatus string

const (
	StatusPending   ProductStatus = "pending"
	StatusCompleted ProductStatus = "completed"
	StatusFailed    ProductStatus = "failed"
)

// ProductStore persists products together with their extracted variants.
type ProductStore struct {
	db *DB
}

func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

// SaveWithTx upserts the product and replaces its variant rows inside the
// caller's transaction, so the outbox event can ride in the same commit.
func (s *ProductStore) SaveWithTx(ctx context.Context, tx pgx.Tx, product *models.Product, verdict *variants.Verdict) error {
	imagesJSON, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	query := `
		INSERT INTO products (
			asin, url, title, brand, category,
			price_amount, price_currency, rating, review_count, images,
			extraction_method, extraction_confidence, status, scraped_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, CURRENT_TIMESTAMP
		)
		ON CONFLICT (asin) DO UPDATE SET
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			price_amount = EXCLUDED.price_amount,
			price_currency = EXCLUDED.price_currency,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			images = EXCLUDED.images,
			extraction_method = EXCLUDED.extraction_method,
			extraction_confidence = EXCLUDED.extraction_confidence,
			status = EXCLUDED.status,
			error_message = NULL,
			scraped_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP`

	_, err = tx.Exec(ctx, query,
		product.ASIN, product.URL, product.Title, product.Brand, product.Category,
		product.Price.Amount, product.Price.Currency, product.Rating, product.ReviewCount, imagesJSON,
		string(verdict.Method), verdict.Confidence, StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE asin = $1`, product.ASIN); err != nil {
		return fmt.Errorf("failed to clear variants: %w", err)
	}

	for _, v := range verdict.Variants {
		variantImages, err := json.Marshal(v.Images)
		if err != nil {
			return fmt.Errorf("failed to marshal variant images: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO product_variants (asin, variant_type, name, price, stock, sku, images)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			product.ASIN, v.Type, v.Name, v.Price, v.Stock, v.SKU, variantImages,
		)
		if err != nil {
			return fmt.Errorf("failed to insert variant %s/%s: %w", v.Type, v.Name, err)
		}
	}

	return nil
}

// MarkFailed records an extraction failure without touching existing variant
// rows from a previous successful run.
func (s *ProductStore) MarkFailed(ctx context.Context, asin, url, errorMsg string) error {
	query := `
		INSERT INTO products (asin, url, status, error_message)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asin) DO UPDATE SET
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			updated_at = CURRENT_TIMESTAMP`

	_, err := s.db.pool.Exec(ctx, query, asin, url, StatusFailed, errorMsg)
	if err != nil {
		return fmt.Errorf("failed to mark product failed: %w", err)
	}

	return nil
}

// Get retrieves a product and its variants by ASIN. Returns nil when the
// product is unknown.
func (s *ProductStore) Get(ctx context.Context, asin string) (*models.Product, error) {
	query := `
		SELECT asin, url, title, brand, category,
			price_amount, price_currency, rating, review_count, images,
			scraped_at, updated_at
		FROM products
		WHERE asin = $1`

	p := &models.Product{}
	var imagesJSON []byte

	err := s.db.pool.QueryRow(ctx, query, asin).Scan(
		&p.ASIN, &p.URL, &p.Title, &p.Brand, &p.Category,
		&p.Price.Amount, &p.Price.Currency, &p.Rating, &p.ReviewCount, &imagesJSON,
		&p.ScrapedAt, &p.LastUpdated,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	p.ID = p.ASIN
	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal images: %w", err)
		}
	}

	p.Variants, err = s.variantsFor(ctx, asin)
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (s *ProductStore) variantsFor(ctx context.Context, asin string) ([]variants.Variant, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT variant_type, name, price, stock, sku, images
		FROM product_variants
		WHERE asin = $1
		ORDER BY id`, asin)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var result []variants.Variant
	for rows.Next() {
		var v variants.Variant
		var imagesJSON []byte
		if err := rows.Scan(&v.Type, &v.Name, &v.Price, &v.Stock, &v.SKU, &imagesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		if len(imagesJSON) > 0 {
			if err := json.Unmarshal(imagesJSON, &v.Images); err != nil {
				return nil, fmt.Errorf("failed to unmarshal variant images: %w", err)
			}
		}
		result = append(result, v)
	}

	return result, rows.Err()
}

// CountByStatus returns how many products sit in each extraction status.
func (s *ProductStore) CountByStatus(ctx context.Context) (map[ProductStatus]int, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM products GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	defer rows.Close()

	counts := make(map[ProductStatus]int)
	for rows.Next() {
		var status ProductStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// StaleProducts lists completed products whose last scrape is older than the
// given age, for re-extraction scheduling.
func (s *ProductStore) StaleProducts(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	cutoff := time.Now().Add(-olderThan)

	rows, err := s.db.pool.Query(ctx, `
		SELECT asin FROM products
		WHERE status = $1 AND scraped_at < $2
		ORDER BY scraped_at ASC
		LIMIT $3`, StatusCompleted, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale products: %w", err)
	}
	defer rows.Close()

	var asins []string
	for rows.Next() {
		var asin string
		if err := rows.Scan(&asin); err != nil {
			return nil, fmt.Errorf("failed to scan asin: %w", err)
		}
		asins = append(asins, asin)
	}

	return asins, rows.Err()
}
