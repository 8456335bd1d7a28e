// Command extract runs the variant extraction pipeline over a single product
// page, either a saved HTML file or a live URL, and prints the verdict as
// JSON. Useful for debugging selector changes without the full service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/variantlab/variant-scraper/internal/browser"
	"github.com/variantlab/variant-scraper/internal/config"
	"github.com/variantlab/variant-scraper/internal/llm"
	"github.com/variantlab/variant-scraper/internal/parser"
	"github.com/variantlab/variant-scraper/internal/variants"
)

func main() {
	var (
		url       = flag.String("url", "", "product page URL to fetch and extract")
		file      = flag.String("file", "", "saved HTML file to extract from")
		title     = flag.String("title", "", "product title (required with -file)")
		basePrice = flag.Float64("price", 0, "product base price")
		timeout   = flag.Duration("timeout", 2*time.Minute, "overall extraction timeout")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if (*url == "") == (*file == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -url or -file is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}

	var verifier variants.Verifier
	if cfg.Verifier.APIKey != "" {
		v, err := llm.NewOpenAIVerifier(llm.Config{
			APIKey:  cfg.Verifier.APIKey,
			Model:   cfg.Verifier.Model,
			BaseURL: cfg.Verifier.BaseURL,
			Timeout: cfg.Verifier.Timeout,
		}, logger)
		if err != nil {
			fatal(err)
		}
		verifier = v
	}

	pipeline := variants.New(variants.DefaultConfig(), verifier, logger)

	var content *variants.PageContent
	info := variants.ProductInfo{Title: *title, BasePrice: *basePrice}

	switch {
	case *file != "":
		html, err := os.ReadFile(*file)
		if err != nil {
			fatal(err)
		}
		content = &variants.PageContent{HTML: string(html)}

	case *url != "":
		b, err := browser.New(nil)
		if err != nil {
			fatal(err)
		}
		defer b.Close()

		page, err := b.NewPage()
		if err != nil {
			fatal(err)
		}
		defer page.Close()

		if err := b.NavigateWithRetry(page, *url, 3); err != nil {
			fatal(err)
		}

		content, err = browser.CapturePage(page)
		if err != nil {
			fatal(err)
		}

		p := parser.NewProductParser()
		if info.Title == "" {
			if t, err := p.ExtractTitle(content.HTML); err == nil {
				info.Title = t
			}
		}
		if info.BasePrice == 0 {
			if price, err := p.ExtractPrice(content.HTML); err == nil {
				info.BasePrice = price.Amount
			}
		}
	}

	verdict, err := pipeline.Extract(ctx, content, info)
	if err != nil {
		fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(verdict); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
