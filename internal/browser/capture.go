package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/variantlab/variant-scraper/internal/variants"
)

// expanderSelector matches the collapsed controls that hide variant rows
// until clicked: twister expander headers and generic collapsed toggles.
const expanderSelector = `[id^="inline-twister-expander-header"], .a-expander-header[aria-expanded="false"], [data-action="a-expander-toggle"]`

// CapturePage snapshots a rendered product page into the form the extraction
// pipeline consumes. The returned content carries the live page behind the
// Interactor so the pipeline can trigger lazy-loaded options on demand.
func CapturePage(page playwright.Page) (*variants.PageContent, error) {
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	return &variants.PageContent{
		HTML:       html,
		Interactor: &expanderInteractor{page: page},
	}, nil
}

type expanderInteractor struct {
	page playwright.Page
}

func (e *expanderInteractor) ExpanderCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count, err := e.page.Locator(expanderSelector).Count()
	if err != nil {
		return 0, fmt.Errorf("failed to count expanders: %w", err)
	}
	return count, nil
}

func (e *expanderInteractor) ClickExpander(ctx context.Context, i int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	timeout := 3 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return "", context.DeadlineExceeded
	}

	locator := e.page.Locator(expanderSelector).Nth(i)
	if err := locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("failed to click expander %d: %w", i, err)
	}

	// Give the twister a beat to swap its option rows in.
	e.page.WaitForTimeout(500)

	html, err := e.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read content after click: %w", err)
	}
	return html, nil
}
