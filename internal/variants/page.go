package variants

import "context"

// PageContent is an already-rendered document handed in by the caller,
// optionally with interaction snapshots captured after simulated clicks.
// It is read-only to the pipeline and discarded after one extraction.
type PageContent struct {
	HTML      string
	Snapshots []string

	// Interactor, when non-nil, lets the collector reveal option data
	// hidden behind collapsed controls. The pipeline never retains it
	// beyond a single Extract call.
	Interactor PageInteractor
}

// PageInteractor abstracts the browser session owned by the caller. The
// interactive strategy is the only part of the core that mutates external
// state, and it does so exclusively through this interface.
type PageInteractor interface {
	// ExpanderCount reports how many collapsed "more options" controls
	// are present on the page.
	ExpanderCount(ctx context.Context) (int, error)

	// ClickExpander clicks the i-th control and returns the settled HTML
	// after the page has re-rendered.
	ClickExpander(ctx context.Context, i int) (string, error)
}
