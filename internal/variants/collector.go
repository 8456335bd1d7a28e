package variants

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var variationContainerPattern = regexp.MustCompile(`^variation_([a-z0-9_]+)_name$`)

// dataAttributes are scanned for option names even when not visibly
// rendered. Order matters: the first attribute present on an element wins.
var dataAttributes = []string{
	"data-variation-name",
	"data-variant-name",
	"data-option-name",
	"data-color-name",
	"data-size-name",
	"data-storage-name",
	"data-style-name",
}

// Collector maximizes recall: it runs several independent strategies
// against one page and pools everything that might be a variant, without
// judging correctness. Absence of a strategy's target is normal and yields
// zero candidates, never an error.
type Collector struct {
	cfg    Config
	logger *slog.Logger
}

func NewCollector(cfg Config, logger *slog.Logger) *Collector {
	return &Collector{cfg: cfg, logger: logger.With("component", "collector")}
}

// CollectResult is the raw candidate pool plus degradation markers.
type CollectResult struct {
	Candidates []Candidate

	// InteractiveTimedOut is set when the interactive strategy hit its
	// overall budget; the pool then holds whatever was found before.
	InteractiveTimedOut bool
}

// Collect runs the strategies in fixed order against the page. The enough
// predicate decides whether the static strategies found a usable pool; only
// when they did not does the interactive strategy run. The only error ever
// returned is context cancellation.
func (c *Collector) Collect(ctx context.Context, page *PageContent, enough func([]Candidate) bool) (CollectResult, error) {
	var res CollectResult

	docs := make([]*goquery.Document, 0, 1+len(page.Snapshots))
	if doc := c.parse(page.HTML); doc != nil {
		docs = append(docs, doc)
	}
	for _, snap := range page.Snapshots {
		if doc := c.parse(snap); doc != nil {
			docs = append(docs, doc)
		}
	}

	type strategy struct {
		name string
		run  func(*goquery.Document) []Candidate
	}
	static := []strategy{
		{"variation_containers", c.collectContainers},
		{"dropdowns", c.collectDropdowns},
		{"button_groups", c.collectButtonGroups},
		{"structured_data", c.collectStructuredData},
		{"data_attributes", c.collectDataAttributes},
	}

	for _, s := range static {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		found := 0
		for i, doc := range docs {
			// Snapshots carry only the in-page strategies; structured data
			// and hidden attributes do not change across clicks.
			if i > 0 && (s.name == "structured_data" || s.name == "data_attributes") {
				continue
			}
			cands := s.run(doc)
			found += len(cands)
			res.Candidates = append(res.Candidates, cands...)
		}
		c.logger.Debug("strategy done", "strategy", s.name, "candidates", found)
	}

	if enough != nil && enough(res.Candidates) {
		return res, nil
	}
	if page.Interactor == nil {
		return res, nil
	}

	timedOut, err := c.collectInteractively(ctx, page, &res.Candidates, enough)
	if err != nil {
		return res, err
	}
	res.InteractiveTimedOut = timedOut
	return res, nil
}

func (c *Collector) parse(html string) *goquery.Document {
	if strings.TrimSpace(html) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.Warn("failed to parse page content", "error", err)
		return nil
	}
	return doc
}

// collectContainers walks the semantic variation containers, e.g.
// #variation_color_name, including dimensions outside the recognized
// vocabulary (variation_flavor_name and friends).
func (c *Collector) collectContainers(doc *goquery.Document) []Candidate {
	var out []Candidate

	doc.Find("div[id^='variation_'], ul[id^='variation_']").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		m := variationContainerPattern.FindStringSubmatch(id)
		if m == nil {
			return
		}
		dim := m[1]

		s.Find("li").Each(func(_ int, li *goquery.Selection) {
			text := entryLabel(li)
			if text == "" {
				return
			}
			out = append(out, Candidate{
				RawText:       text,
				Source:        StrategyContainer,
				ContainerHint: dim,
			})
		})

		// Some containers render the selected value as a plain span.
		s.Find("span.selection").Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return
			}
			out = append(out, Candidate{
				RawText:       text,
				Source:        StrategyContainer,
				ContainerHint: dim,
			})
		})
	})

	return out
}

// collectDropdowns enumerates genuine product-option dropdowns, identified
// by the configuration naming convention rather than generic <select>
// matching, so page-navigation dropdowns stay out of the pool.
func (c *Collector) collectDropdowns(doc *goquery.Document) []Candidate {
	var out []Candidate

	doc.Find("select").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		name, _ := sel.Attr("name")
		ident := strings.ToLower(id + " " + name)

		if strings.Contains(ident, "quantity") || strings.Contains(ident, "qty") || strings.Contains(ident, "amount") {
			return
		}
		if !strings.Contains(ident, "dropdown_selected_") {
			return
		}

		hint := id
		if hint == "" {
			hint = name
		}

		sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
			text := strings.TrimSpace(opt.Text())
			if len(text) < 2 {
				return
			}
			out = append(out, Candidate{
				RawText:       text,
				Source:        StrategyDropdown,
				ContainerHint: hint,
			})
		})
	})

	return out
}

// collectButtonGroups reads sibling clickable elements inside recognized
// swatch/option containers, using visible text or the accessible label.
func (c *Collector) collectButtonGroups(doc *goquery.Document) []Candidate {
	var out []Candidate

	doc.Find(".a-button-group, .a-button-toggle-group, [role='radiogroup']").Each(func(_ int, group *goquery.Selection) {
		hint := groupHint(group)

		group.Find("button, .a-button, [role='radio']").Each(func(_ int, btn *goquery.Selection) {
			text := entryLabel(btn)
			if text == "" {
				return
			}
			out = append(out, Candidate{
				RawText:       text,
				Source:        StrategyButtonGroup,
				ContainerHint: hint,
			})
		})
	})

	return out
}

// ldOffer is the subset of a schema.org Offer the collector cares about.
type ldOffer struct {
	Name           string `json:"name"`
	SKU            string `json:"sku"`
	Price          any    `json:"price"`
	InventoryLevel any    `json:"inventoryLevel"`
}

type ldProduct struct {
	Name   string          `json:"name"`
	Offers json.RawMessage `json:"offers"`
}

// collectStructuredData parses embedded JSON-LD product blocks. Offers
// typically arrive with a declared price, which later wins collisions.
func (c *Collector) collectStructuredData(doc *goquery.Document) []Candidate {
	var out []Candidate

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var prod ldProduct
		if err := json.Unmarshal([]byte(s.Text()), &prod); err != nil {
			return
		}
		if len(prod.Offers) == 0 {
			return
		}

		var offers []ldOffer
		if err := json.Unmarshal(prod.Offers, &offers); err != nil {
			var single ldOffer
			if err := json.Unmarshal(prod.Offers, &single); err != nil {
				return
			}
			offers = []ldOffer{single}
		}

		for _, offer := range offers {
			if offer.Name == "" || offer.Name == prod.Name {
				continue
			}
			cand := Candidate{
				RawText:       offer.Name,
				Source:        StrategyStructuredData,
				ContainerHint: "offer",
				DeclaredSKU:   offer.SKU,
			}
			if price, ok := toFloat(offer.Price); ok {
				cand.DeclaredPrice = &price
			}
			if level, ok := toFloat(offer.InventoryLevel); ok {
				stock := int(level)
				cand.DeclaredStock = &stock
			}
			out = append(out, cand)
		}
	})

	return out
}

// collectDataAttributes scans for the variant-naming attribute convention
// even on elements that are not visibly rendered.
func (c *Collector) collectDataAttributes(doc *goquery.Document) []Candidate {
	var out []Candidate

	for _, attr := range dataAttributes {
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			val, _ := s.Attr(attr)
			val = strings.TrimSpace(val)
			if len(val) < 2 {
				return
			}
			out = append(out, Candidate{
				RawText:       val,
				Source:        StrategyDataAttribute,
				ContainerHint: attributeDimension(attr),
			})
		})
	}

	return out
}

// collectInteractively clicks a bounded number of collapsed option controls
// and re-collects the in-page strategies from each resulting snapshot. It
// stops early once the pool is usable and aborts cleanly on its overall
// budget, returning partial results.
func (c *Collector) collectInteractively(ctx context.Context, page *PageContent, pool *[]Candidate, enough func([]Candidate) bool) (bool, error) {
	deadline := time.Now().Add(c.cfg.InteractiveBudget)

	count, err := page.Interactor.ExpanderCount(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.logger.Warn("failed to enumerate expanders", "error", err)
		return false, nil
	}
	if count > c.cfg.MaxInteractiveClicks {
		count = c.cfg.MaxInteractiveClicks
	}

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !time.Now().Before(deadline) {
			c.logger.Warn("interactive extraction budget exceeded", "clicks", i)
			return true, nil
		}

		clickCtx, cancel := context.WithTimeout(ctx, c.cfg.ClickTimeout)
		html, err := page.Interactor.ClickExpander(clickCtx, i)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			c.logger.Warn("expander click failed", "index", i, "error", err)
			continue
		}

		doc := c.parse(html)
		if doc == nil {
			continue
		}
		var found []Candidate
		found = append(found, c.collectContainers(doc)...)
		found = append(found, c.collectDropdowns(doc)...)
		found = append(found, c.collectButtonGroups(doc)...)
		for _, cand := range found {
			cand.Source = StrategyInteractive
			*pool = append(*pool, cand)
		}

		if enough != nil && enough(*pool) {
			break
		}
	}

	return false, nil
}

// entryLabel reads the visible text of a selectable entry, falling back to
// accessible labels and image alt text for pure swatch entries.
func entryLabel(s *goquery.Selection) string {
	if text := strings.TrimSpace(s.Find(".a-button-text").First().Text()); text != "" {
		return text
	}
	if text := strings.TrimSpace(s.Text()); text != "" {
		return text
	}
	for _, attr := range []string{"aria-label", "title"} {
		if val, ok := s.Attr(attr); ok {
			if val = strings.TrimSpace(val); val != "" {
				return val
			}
		}
	}
	if alt, ok := s.Find("img").First().Attr("alt"); ok {
		return strings.TrimSpace(alt)
	}
	return ""
}

// groupHint derives a dimension hint for a button group from its own id or
// the variation container enclosing it.
func groupHint(group *goquery.Selection) string {
	if id, ok := group.Attr("id"); ok && id != "" {
		return id
	}
	parent := group.ParentsFiltered("div[id^='variation_']").First()
	if id, ok := parent.Attr("id"); ok {
		return id
	}
	if label, ok := group.Attr("aria-label"); ok {
		return label
	}
	return ""
}

func attributeDimension(attr string) string {
	dim := strings.TrimPrefix(attr, "data-")
	dim = strings.TrimSuffix(dim, "-name")
	switch dim {
	case "variation", "variant", "option":
		return ""
	default:
		return dim
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String implements fmt.Stringer for diagnostics in logs.
func (r CollectResult) String() string {
	return fmt.Sprintf("candidates=%d timed_out=%t", len(r.Candidates), r.InteractiveTimedOut)
}
