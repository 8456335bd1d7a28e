package jobs

import (
	"context"
	"fmt"

	"github.com/variantlab/variant-scraper/internal/browser"
	"github.com/variantlab/variant-scraper/internal/variants"
)

// BrowserFetcher renders product pages in a real browser so the pipeline can
// click through lazy-loaded option groups.
type BrowserFetcher struct {
	browser    *browser.Browser
	maxRetries int
}

func NewBrowserFetcher(b *browser.Browser, maxRetries int) *BrowserFetcher {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &BrowserFetcher{browser: b, maxRetries: maxRetries}
}

func (f *BrowserFetcher) FetchPage(ctx context.Context, url string) (*variants.PageContent, func(), error) {
	page, err := f.browser.NewPage()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { page.Close() }

	if err := f.browser.NavigateWithRetry(page, url, f.maxRetries); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("navigation failed: %w", err)
	}

	if err := f.browser.HumanizeInteraction(page); err != nil {
		cleanup()
		return nil, nil, err
	}

	content, err := browser.CapturePage(page)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return content, cleanup, nil
}
