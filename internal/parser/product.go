package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/variantlab/variant-scraper/internal/models"
)

type ProductParser struct {
	ratingPattern *regexp.Regexp
	reviewPattern *regexp.Regexp
	asinPattern   *regexp.Regexp
}

func NewProductParser() *ProductParser {
	return &ProductParser{
		ratingPattern: regexp.MustCompile(`(\d(?:\.\d)?)\s+out of 5 stars`),
		reviewPattern: regexp.MustCompile(`([\d,]+)\s+(?:global\s+)?ratings?`),
		asinPattern:   regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`),
	}
}

func (p *ProductParser) ParseProductPage(html string, asin string) (*models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	product := models.NewProduct(asin)

	product.Title = p.extractTitle(doc)
	product.Brand = p.extractBrand(doc)
	product.Category = p.extractCategory(doc)

	if price := p.extractPrice(doc); price != nil {
		product.Price = *price
	}

	if rating := p.extractRating(doc); rating != nil {
		product.Rating = rating
	}

	if count := p.extractReviewCount(doc); count != nil {
		product.ReviewCount = count
	}

	product.Images = p.extractImages(doc)

	return product, nil
}

func (p *ProductParser) ExtractTitle(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	title := p.extractTitle(doc)
	if title == "" {
		return "", fmt.Errorf("title not found")
	}
	return title, nil
}

func (p *ProductParser) ExtractPrice(html string) (*models.Price, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	if price := p.extractPrice(doc); price != nil {
		return price, nil
	}
	return nil, fmt.Errorf("price not found")
}

// ExtractASIN pulls the ASIN out of a product URL.
func (p *ProductParser) ExtractASIN(url string) (string, error) {
	matches := p.asinPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("no ASIN in URL %q", url)
	}
	return matches[1], nil
}

func (p *ProductParser) extractTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("#productTitle").Text())
}

func (p *ProductParser) extractBrand(doc *goquery.Document) string {
	brand := doc.Find("#bylineInfo").Text()
	brand = strings.TrimPrefix(brand, "Brand: ")
	brand = strings.TrimPrefix(brand, "Visit the ")
	brand = strings.TrimSuffix(brand, " Store")
	return strings.TrimSpace(brand)
}

func (p *ProductParser) extractCategory(doc *goquery.Document) string {
	breadcrumb := doc.Find("#wayfinding-breadcrumbs_feature_div .a-list-item").Last().Text()
	return strings.TrimSpace(breadcrumb)
}

func (p *ProductParser) extractPrice(doc *goquery.Document) *models.Price {
	priceSelectors := []string{
		".a-price .a-offscreen",
		"span.a-price.a-text-price.a-size-medium.apexPriceToPay",
		".a-price-whole",
		"#priceblock_dealprice",
		"#priceblock_ourprice",
	}

	for _, selector := range priceSelectors {
		priceText := strings.TrimSpace(doc.Find(selector).First().Text())
		if priceText == "" {
			continue
		}
		if price := p.parsePrice(priceText); price != nil && price.Amount > 0 {
			return price
		}
	}

	return nil
}

func (p *ProductParser) extractRating(doc *goquery.Document) *float64 {
	text := doc.Find("#acrPopover").AttrOr("title", "")
	if text == "" {
		text = doc.Find("span[data-hook='rating-out-of-text']").Text()
	}

	matches := p.ratingPattern.FindStringSubmatch(text)
	if len(matches) < 2 {
		return nil
	}

	rating, err := strconv.ParseFloat(matches[1], 64)
	if err != nil || rating < 0 || rating > 5 {
		return nil
	}
	return &rating
}

func (p *ProductParser) extractReviewCount(doc *goquery.Document) *int {
	text := strings.TrimSpace(doc.Find("#acrCustomerReviewText").First().Text())
	if text == "" {
		return nil
	}

	matches := p.reviewPattern.FindStringSubmatch(text)
	if len(matches) < 2 {
		return nil
	}

	count, err := strconv.Atoi(strings.ReplaceAll(matches[1], ",", ""))
	if err != nil {
		return nil
	}
	return &count
}

func (p *ProductParser) extractImages(doc *goquery.Document) []string {
	var images []string

	doc.Find("#altImages ul li img").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists {
			// Thumbnails link to a downscaled rendition; swap in the large one.
			fullSrc := strings.Replace(src, "_AC_US40_", "_AC_SL1500_", 1)
			images = append(images, fullSrc)
		}
	})

	if mainImage, exists := doc.Find("#landingImage").Attr("src"); exists && len(images) == 0 {
		images = append(images, mainImage)
	}

	return images
}

// parsePrice handles US-formatted price strings like "$1,234.56".
func (p *ProductParser) parsePrice(s string) *models.Price {
	re := regexp.MustCompile(`\$?\s*([\d,]+(?:\.\d+)?)`)
	matches := re.FindStringSubmatch(s)

	if len(matches) > 1 {
		raw := strings.ReplaceAll(matches[1], ",", "")
		amount, err := strconv.ParseFloat(raw, 64)
		if err == nil && amount > 0 {
			return &models.Price{
				Amount:   amount,
				Currency: "USD",
			}
		}
	}

	return nil
}
