package models

import (
	"time"

	"github.com/variantlab/variant-scraper/internal/variants"
)

// Product is one scraped product page, normalized for storage.
type Product struct {
	ID          string             `json:"id"`
	ASIN        string             `json:"asin"`
	URL         string             `json:"url"`
	Title       string             `json:"title"`
	Brand       string             `json:"brand"`
	Category    string             `json:"category"`
	Price       Price              `json:"price"`
	Rating      *float64           `json:"rating,omitempty"`
	ReviewCount *int               `json:"review_count,omitempty"`
	Images      []string           `json:"images"`
	Variants    []variants.Variant `json:"variants"`
	ScrapedAt   time.Time          `json:"scraped_at"`
	LastUpdated time.Time          `json:"last_updated"`
}

type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type ScrapeResult struct {
	Product *Product          `json:"product,omitempty"`
	Verdict *variants.Verdict `json:"verdict,omitempty"`
	Error   *Error            `json:"error,omitempty"`
	Success bool              `json:"success"`
}

type Error struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
	URL     string    `json:"url,omitempty"`
}

func NewProduct(asin string) *Product {
	now := time.Now()
	return &Product{
		ID:          asin,
		ASIN:        asin,
		ScrapedAt:   now,
		LastUpdated: now,
		Images:      make([]string, 0),
	}
}

func (p *Price) IsValid() bool {
	return p.Amount >= 0 && p.Currency != ""
}

func (p *Product) Validate() []string {
	var errs []string

	if p.ASIN == "" && p.URL == "" {
		errs = append(errs, "ASIN or URL is required")
	}

	if p.Title == "" {
		errs = append(errs, "Title is required")
	}

	return errs
}
