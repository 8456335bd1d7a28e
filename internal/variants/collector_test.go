package variants

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func candidateTexts(cands []Candidate) []string {
	texts := make([]string, 0, len(cands))
	for _, c := range cands {
		texts = append(texts, c.RawText)
	}
	return texts
}

func TestCollectVariationContainers(t *testing.T) {
	html := `<html><body>
		<div id="variation_color_name">
			<ul>
				<li><span class="a-button-text">Black</span></li>
				<li><span class="a-button-text">White</span></li>
			</ul>
		</div>
		<div id="variation_flavor_name">
			<ul><li><span class="a-button-text">Cherry</span></li></ul>
		</div>
	</body></html>`

	c := NewCollector(DefaultConfig(), testLogger())
	res, err := c.Collect(context.Background(), &PageContent{HTML: html}, nil)

	require.NoError(t, err)
	texts := candidateTexts(res.Candidates)
	assert.Contains(t, texts, "Black")
	assert.Contains(t, texts, "White")
	assert.Contains(t, texts, "Cherry")

	for _, cand := range res.Candidates {
		assert.Equal(t, StrategyContainer, cand.Source)
	}

	var cherryHint string
	for _, cand := range res.Candidates {
		if cand.RawText == "Cherry" {
			cherryHint = cand.ContainerHint
		}
	}
	assert.Equal(t, "flavor", cherryHint)
}

func TestCollectDropdownsSkipsQuantitySelectors(t *testing.T) {
	html := `<html><body>
		<select id="native_dropdown_selected_size_name">
			<option value="">Select</option>
			<option>Small</option>
			<option>Medium</option>
		</select>
		<select id="quantity">
			<option>1</option>
			<option>2</option>
		</select>
		<select id="nav-search-dropdown">
			<option>All Departments</option>
		</select>
	</body></html>`

	c := NewCollector(DefaultConfig(), testLogger())
	res, err := c.Collect(context.Background(), &PageContent{HTML: html}, nil)

	require.NoError(t, err)
	texts := candidateTexts(res.Candidates)
	assert.Contains(t, texts, "Small")
	assert.Contains(t, texts, "Medium")
	assert.NotContains(t, texts, "1")
	assert.NotContains(t, texts, "2")
	assert.NotContains(t, texts, "All Departments")
}

func TestCollectButtonGroups(t *testing.T) {
	html := `<html><body>
		<div id="variation_style_name">
			<div class="a-button-toggle-group">
				<button>Sport</button>
				<button>Classic</button>
			</div>
		</div>
	</body></html>`

	c := NewCollector(DefaultConfig(), testLogger())
	res, err := c.Collect(context.Background(), &PageContent{HTML: html}, nil)

	require.NoError(t, err)

	var fromButtons []Candidate
	for _, cand := range res.Candidates {
		if cand.Source == StrategyButtonGroup {
			fromButtons = append(fromButtons, cand)
		}
	}
	require.Len(t, fromButtons, 2)
	assert.Equal(t, "Sport", fromButtons[0].RawText)
	assert.Equal(t, "variation_style_name", fromButtons[0].ContainerHint)
}

func TestCollectStructuredData(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">
		{
			"@type": "Product",
			"name": "Cotton T-Shirt",
			"offers": [
				{"name": "Medium", "price": "31.99", "sku": "TS-M"},
				{"name": "Large", "price": 34.99, "inventoryLevel": 4}
			]
		}
		</script>
	</head><body></body></html>`

	c := NewCollector(DefaultConfig(), testLogger())
	res, err := c.Collect(context.Background(), &PageContent{HTML: html}, nil)

	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)

	medium := res.Candidates[0]
	assert.Equal(t, StrategyStructuredData, medium.Source)
	require.NotNil(t, medium.DeclaredPrice)
	assert.Equal(t, 31.99, *medium.DeclaredPrice)
	assert.Equal(t, "TS-M", medium.DeclaredSKU)

	large := res.Candidates[1]
	require.NotNil(t, large.DeclaredStock)
	assert.Equal(t, 4, *large.DeclaredStock)
}

func TestCollectDataAttributes(t *testing.T) {
	html := `<html><body>
		<span data-color-name="Midnight Blue"></span>
		<span data-size-name="XL"></span>
	</body></html>`

	c := NewCollector(DefaultConfig(), testLogger())
	res, err := c.Collect(context.Background(), &PageContent{HTML: html}, nil)

	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "Midnight Blue", res.Candidates[0].RawText)
	assert.Equal(t, "color", res.Candidates[0].ContainerHint)
	assert.Equal(t, StrategyDataAttribute, res.Candidates[0].Source)
}

func TestCollectMissingSourcesYieldNothing(t *testing.T) {
	c := NewCollector(DefaultConfig(), testLogger())
	res, err := c.Collect(context.Background(), &PageContent{HTML: "<html><body><p>hello</p></body></html>"}, nil)

	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.False(t, res.InteractiveTimedOut)
}

func TestCollectIncludesSnapshots(t *testing.T) {
	snapshot := `<div id="variation_color_name"><ul><li><span class="a-button-text">Teal</span></li></ul></div>`

	c := NewCollector(DefaultConfig(), testLogger())
	res, err := c.Collect(context.Background(), &PageContent{
		HTML:      "<html><body></body></html>",
		Snapshots: []string{snapshot},
	}, nil)

	require.NoError(t, err)
	assert.Contains(t, candidateTexts(res.Candidates), "Teal")
}

// stubInteractor simulates a page whose options appear only after clicking
// a collapsed control.
type stubInteractor struct {
	expanders int
	html      string
	clickErr  error
	clicks    int
}

func (s *stubInteractor) ExpanderCount(ctx context.Context) (int, error) {
	return s.expanders, nil
}

func (s *stubInteractor) ClickExpander(ctx context.Context, i int) (string, error) {
	s.clicks++
	if s.clickErr != nil {
		return "", s.clickErr
	}
	return s.html, nil
}

func TestCollectInteractiveStopsOnceNonEmpty(t *testing.T) {
	interactor := &stubInteractor{
		expanders: 3,
		html:      `<div id="variation_color_name"><ul><li><span class="a-button-text">Olive</span></li></ul></div>`,
	}

	cfg := DefaultConfig()
	classifier := NewClassifier(cfg)
	enough := func(pool []Candidate) bool {
		for _, cand := range pool {
			c := classifier.Classify(cand)
			if c.Type != TypeQuantity && c.Type != TypeUnrelated {
				return true
			}
		}
		return false
	}

	c := NewCollector(cfg, testLogger())
	res, err := c.Collect(context.Background(), &PageContent{
		HTML:       "<html><body></body></html>",
		Interactor: interactor,
	}, enough)

	require.NoError(t, err)
	assert.Equal(t, 1, interactor.clicks, "must stop after the first useful click")
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, StrategyInteractive, res.Candidates[0].Source)
	assert.Equal(t, "Olive", res.Candidates[0].RawText)
}

func TestCollectInteractiveRespectsClickCap(t *testing.T) {
	interactor := &stubInteractor{expanders: 50, html: "<html><body></body></html>"}

	cfg := DefaultConfig()
	cfg.MaxInteractiveClicks = 2

	c := NewCollector(cfg, testLogger())
	_, err := c.Collect(context.Background(), &PageContent{
		HTML:       "<html><body></body></html>",
		Interactor: interactor,
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, interactor.clicks)
}

func TestCollectInteractiveBudgetExceededReturnsPartial(t *testing.T) {
	interactor := &stubInteractor{expanders: 3, html: "<html><body></body></html>"}

	cfg := DefaultConfig()
	cfg.InteractiveBudget = -time.Millisecond

	c := NewCollector(cfg, testLogger())
	res, err := c.Collect(context.Background(), &PageContent{
		HTML:       "<html><body></body></html>",
		Interactor: interactor,
	}, nil)

	require.NoError(t, err)
	assert.True(t, res.InteractiveTimedOut)
	assert.Zero(t, interactor.clicks)
}

func TestCollectInteractiveClickFailureIsNotFatal(t *testing.T) {
	interactor := &stubInteractor{expanders: 2, clickErr: errors.New("element detached")}

	c := NewCollector(DefaultConfig(), testLogger())
	res, err := c.Collect(context.Background(), &PageContent{
		HTML:       "<html><body></body></html>",
		Interactor: interactor,
	}, nil)

	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
}

func TestCollectHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector(DefaultConfig(), testLogger())
	_, err := c.Collect(ctx, &PageContent{HTML: "<html></html>"}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
