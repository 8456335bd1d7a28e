package variants

import (
	"context"
	"log/slog"
)

// Pipeline sequences collection, classification, filtering, optional
// semantic verification, and deduplication for one product page. Data flows
// strictly left to right; no stage re-invokes an earlier one, and failures
// fall back to the best result so far instead of aborting.
//
// A Pipeline is safe for sequential reuse across products but holds no
// per-product state: every Extract call works on fresh records.
type Pipeline struct {
	collector  *Collector
	classifier *Classifier
	filter     *NoiseFilter
	dedupe     *Deduplicator
	verifier   Verifier
	logger     *slog.Logger
}

// New builds a pipeline. A nil verifier means the semantic stage is a
// no-op pass-through and every verdict is rule-based.
func New(cfg Config, verifier Verifier, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		collector:  NewCollector(cfg, logger),
		classifier: NewClassifier(cfg),
		filter:     NewNoiseFilter(cfg),
		dedupe:     NewDeduplicator(),
		verifier:   verifier,
		logger:     logger.With("component", "variant_pipeline"),
	}
}

// Extract turns one page's content into a final variant list. An empty list
// is a valid terminal state, not an error; the only error returned is
// context cancellation, so callers can tell "no variants" from "told to
// stop".
func (p *Pipeline) Extract(ctx context.Context, page *PageContent, product ProductInfo) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collected, err := p.collector.Collect(ctx, page, p.usable)
	if err != nil {
		return nil, err
	}

	classified := make([]ClassifiedOption, 0, len(collected.Candidates))
	for _, cand := range collected.Candidates {
		classified = append(classified, p.classifier.Classify(cand))
	}

	filtered := p.filter.Apply(classified)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	method := MethodRuleBased
	survivors := filtered
	if p.verifier != nil && len(filtered) > 0 {
		if verified, ok := p.verify(ctx, filtered, product); ok {
			survivors = verified
			method = MethodAI
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	winners := p.dedupe.winning(survivors)
	finals := p.dedupe.Fold(winners, product.BasePrice)

	verdict := &Verdict{
		Variants:   finals,
		Method:     method,
		Confidence: confidence(winners, method, collected.InteractiveTimedOut),
	}

	p.logger.Info("extraction complete",
		"title", product.Title,
		"candidates", len(collected.Candidates),
		"filtered", len(filtered),
		"variants", len(finals),
		"method", method,
		"confidence", verdict.Confidence,
	)

	return verdict, nil
}

// usable is the stop predicate for the interactive strategy: the static
// pool is good enough when it holds at least one candidate that is neither
// a quantity control nor unrelated UI.
func (p *Pipeline) usable(pool []Candidate) bool {
	for _, cand := range pool {
		c := p.classifier.Classify(cand)
		if c.Type != TypeQuantity && c.Type != TypeUnrelated {
			return true
		}
	}
	return false
}

// verify runs the semantic stage and applies its relabeling. Returns
// ok=false on any failure so the caller keeps the rule-filtered set.
func (p *Pipeline) verify(ctx context.Context, filtered []ClassifiedOption, product ProductInfo) ([]ClassifiedOption, bool) {
	req := VerifyRequest{
		Title:     product.Title,
		BasePrice: product.BasePrice,
		Options:   make([]TypedOption, 0, len(filtered)),
	}
	requested := make(map[string]bool)
	for _, opt := range filtered {
		t := variantType(opt)
		req.Options = append(req.Options, TypedOption{Type: t, Name: opt.RawText})
		requested[t] = true
	}

	resp, err := p.verifier.Verify(ctx, req)
	if err != nil {
		p.logger.Warn("semantic verification unavailable, using rule-based output", "error", err)
		return nil, false
	}

	// Schema validation: every returned type must come from the variant
	// vocabulary or echo a dimension we asked about. Anything else means
	// the response is not data.
	for _, opt := range resp.Options {
		if opt.Name == "" || opt.Type == string(TypeQuantity) || opt.Type == string(TypeUnrelated) {
			p.logger.Warn("verifier response failed schema validation", "type", opt.Type, "name", opt.Name)
			return nil, false
		}
		if !isDimensionType(opt.Type) && !requested[opt.Type] {
			p.logger.Warn("verifier response used unknown type", "type", opt.Type)
			return nil, false
		}
	}

	// The service's output replaces type assignment for matching entries;
	// entries it dropped are excluded.
	byName := make(map[string]TypedOption, len(resp.Options))
	for _, opt := range resp.Options {
		byName[normalize(opt.Name)] = opt
	}

	var verified []ClassifiedOption
	for _, opt := range filtered {
		relabeled, ok := byName[normalize(opt.RawText)]
		if !ok {
			continue
		}
		next := opt
		next.Type = TypeUnknown
		next.HintDimension = relabeled.Type
		for _, dt := range dimensionTypes {
			if relabeled.Type == string(dt) {
				next.Type = dt
				next.HintDimension = ""
				break
			}
		}
		if next.Confidence < 0.8 {
			next.Confidence = 0.8
		}
		verified = append(verified, next)
	}

	return verified, true
}

func isDimensionType(t string) bool {
	for _, dt := range dimensionTypes {
		if t == string(dt) {
			return true
		}
	}
	return false
}

// confidence is the mean classifier confidence of the deduplicated winning
// options, nudged up for AI verification and down after an interactive
// timeout. Averaging over winners keeps repeated candidates from skewing
// the score.
func confidence(winners []ClassifiedOption, method Method, timedOut bool) float64 {
	if len(winners) == 0 {
		return 0
	}
	sum := 0.0
	for _, opt := range winners {
		sum += opt.Confidence
	}
	c := sum / float64(len(winners))
	if method == MethodAI {
		c += 0.1
	}
	if timedOut {
		c -= 0.2
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
