package variants

import "strings"

// Classifier infers the dimension of each candidate from its text and the
// container it was found in. It is a pure, ordered rule table: the first
// matching recognizer wins and an unmatched candidate stays unknown — it is
// never silently promoted to a variant type later.
type Classifier struct {
	cfg Config
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify derives a ClassifiedOption from a candidate. Confidence scales
// with match specificity: a container-hint hit scores above a whole-word
// text hit, which scores above a substring hit.
func (c *Classifier) Classify(cand Candidate) ClassifiedOption {
	out := ClassifiedOption{Candidate: cand, Type: TypeUnknown, Confidence: 0.2}

	text := normalize(cand.RawText)
	hint := normalize(hintDimension(cand.ContainerHint))

	if isQuantityToken(text) || hasQuantityPrefix(text) {
		out.Type = TypeQuantity
		out.Confidence = 0.95
		return out
	}

	if matchesStopPhrase(text, c.cfg.Stoplist) {
		out.Type = TypeUnrelated
		out.Confidence = 0.95
		return out
	}

	// Container hint names the dimension directly.
	if hint != "" {
		for _, t := range dimensionTypes {
			for _, kw := range c.cfg.Keywords[t] {
				if hint == kw || containsWord(hint, kw) {
					out.Type = t
					out.Confidence = 0.9
					return out
				}
			}
		}
	}

	// Whole-word keyword in the option text itself.
	for _, t := range dimensionTypes {
		for _, kw := range c.cfg.Keywords[t] {
			if containsWord(text, kw) {
				out.Type = t
				out.Confidence = 0.7
				return out
			}
		}
	}

	// Fuzzy substring fallback, only for multi-character keywords so "s"
	// or "m" size labels cannot claim arbitrary words.
	for _, t := range dimensionTypes {
		for _, kw := range c.cfg.Keywords[t] {
			if len(kw) >= 4 && strings.Contains(text, kw) {
				out.Type = t
				out.Confidence = 0.5
				return out
			}
		}
	}

	// Unrecognized dimension from the container hint (e.g. "flavor") is
	// preserved so a kept unknown surfaces under its real name.
	out.HintDimension = hint
	return out
}
