package parser

import (
	"github.com/variantlab/variant-scraper/internal/models"
)

type Parser interface {
	ParseProductPage(html string, asin string) (*models.Product, error)
	ExtractTitle(html string) (string, error)
	ExtractPrice(html string) (*models.Price, error)
}
