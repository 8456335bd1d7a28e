package variants

import "unicode/utf8"

// NoiseFilter is the mandatory, deterministic safety net between the
// classifier and the final list. It runs regardless of whether semantic
// verification happens later, because that step is optional and can fail
// under quota or network pressure.
type NoiseFilter struct {
	cfg Config
}

func NewNoiseFilter(cfg Config) *NoiseFilter {
	return &NoiseFilter{cfg: cfg}
}

// Apply discards candidates matching known non-variant patterns. Candidates
// classified unknown survive; whether they reach the final list is the
// deduplicator's policy, not the filter's.
func (f *NoiseFilter) Apply(opts []ClassifiedOption) []ClassifiedOption {
	kept := make([]ClassifiedOption, 0, len(opts))
	for _, opt := range opts {
		if f.keep(opt) {
			kept = append(kept, opt)
		}
	}
	return kept
}

func (f *NoiseFilter) keep(opt ClassifiedOption) bool {
	if opt.Type == TypeQuantity || opt.Type == TypeUnrelated {
		return false
	}

	text := normalize(opt.RawText)
	if text == "" || utf8.RuneCountInString(text) < 2 {
		return false
	}
	if utf8.RuneCountInString(text) > f.cfg.MaxOptionLength {
		return false
	}
	if isQuantityToken(text) || hasQuantityPrefix(text) {
		return false
	}
	if matchesStopPhrase(text, f.cfg.Stoplist) {
		return false
	}
	return true
}
