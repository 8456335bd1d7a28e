package variants

import (
	"regexp"
	"strings"
	"time"
)

// Config is the read-only configuration for one pipeline. It is loaded once
// at process start and shared across pipeline instances without mutation.
type Config struct {
	// Keywords maps each recognized dimension to the tokens that identify it.
	Keywords map[OptionType][]string

	// Stoplist holds UI-action and navigation phrases that are never
	// product options.
	Stoplist []string

	// MaxOptionLength is the longest plausible option label, in runes.
	// Anything longer is boilerplate text, not an option.
	MaxOptionLength int

	// MaxInteractiveClicks caps simulated clicks per page.
	MaxInteractiveClicks int

	// ClickTimeout bounds a single simulated click plus re-render.
	ClickTimeout time.Duration

	// InteractiveBudget bounds the whole interactive strategy. On exceeding
	// it the collector returns whatever it has, never an error.
	InteractiveBudget time.Duration
}

// DefaultConfig returns the keyword tables and stoplist observed to work on
// real product pages. The surrounding application may extend both via its
// own configuration surface.
func DefaultConfig() Config {
	return Config{
		Keywords: map[OptionType][]string{
			TypeColor: {
				"color", "colour", "black", "white", "red", "blue", "green",
				"yellow", "pink", "purple", "brown", "beige", "grey", "gray", "navy",
			},
			TypeSize: {
				"size", "small", "medium", "large", "xs", "xl", "xxl", "3xl",
			},
			TypeStorage: {
				"storage", "gb", "tb", "memory", "ram",
			},
			TypeStyle: {
				"style", "model", "edition", "version", "pattern", "format",
			},
			TypeMaterial: {
				"material", "cotton", "leather", "polyester", "wool", "fabric", "linen",
			},
		},
		Stoplist: []string{
			"add to list", "update page", "select", "choose", "please select",
			"see more", "see all", "learn more",
			// navigation menu entries that leak into button groups
			"all departments", "arts & crafts", "automotive", "baby",
			"beauty & personal care", "books", "boys' fashion", "computers",
			"deals", "digital music", "electronics", "girls' fashion",
			"health & household", "home & kitchen", "industrial & scientific",
			"kindle store", "luggage", "men's fashion", "movies & tv",
			"music, cds & vinyl", "pet supplies", "prime video", "software",
			"sports & outdoors", "tools & home improvement", "toys & games",
			"video games", "women's fashion",
		},
		MaxOptionLength:      60,
		MaxInteractiveClicks: 5,
		ClickTimeout:         3 * time.Second,
		InteractiveBudget:    15 * time.Second,
	}
}

var (
	quantityTokenPattern = regexp.MustCompile(`^\d+\+?$`)
	mediaCounterPattern  = regexp.MustCompile(`^\d*\s*(videos?|photos?|images?)$`)
	wordPattern          = regexp.MustCompile(`[a-z0-9&']+`)
)

// normalize lower-cases, trims, and collapses internal whitespace. All text
// comparisons in the pipeline run on normalized form.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// isQuantityToken reports whether the normalized text is a pure quantity
// selector value such as "1+", "2+" or "5".
func isQuantityToken(normalized string) bool {
	return quantityTokenPattern.MatchString(normalized)
}

// hasQuantityPrefix reports whether the normalized text starts with a
// quantity indicator.
func hasQuantityPrefix(normalized string) bool {
	return strings.HasPrefix(normalized, "qty") || strings.HasPrefix(normalized, "quantity")
}

// matchesStopPhrase reports whether the normalized text equals a stop
// phrase or starts with one ("select" also rejects "select size").
func matchesStopPhrase(normalized string, stoplist []string) bool {
	if mediaCounterPattern.MatchString(normalized) {
		return true
	}
	for _, phrase := range stoplist {
		if normalized == phrase || strings.HasPrefix(normalized, phrase+" ") {
			return true
		}
	}
	return false
}

// containsWord reports whether token appears as a whole word in the
// normalized text.
func containsWord(normalized, token string) bool {
	for _, w := range wordPattern.FindAllString(normalized, -1) {
		if w == token {
			return true
		}
	}
	return false
}

// hintDimension extracts a dimension name from a container hint such as
// "variation_flavor_name" or "dropdown_selected_size_name".
func hintDimension(hint string) string {
	h := strings.ToLower(strings.TrimSpace(hint))
	h = strings.TrimPrefix(h, "native_")
	h = strings.TrimPrefix(h, "dropdown_selected_")
	h = strings.TrimPrefix(h, "variation_")
	h = strings.TrimSuffix(h, "_name")
	return strings.ReplaceAll(h, "_", " ")
}
