package variants

import (
	"sort"
	"strings"
)

// Deduplicator folds filtered candidates into the final variant list. It
// canonicalizes names, resolves collisions by evidence strength, inherits
// the product's base price for unpriced entries, and emits a stable order.
type Deduplicator struct{}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

type foldEntry struct {
	opt ClassifiedOption
	seq int
}

// Fold produces Variants from classified options. For a given product no
// two results share the same (type, name) pair after normalization.
func (d *Deduplicator) Fold(opts []ClassifiedOption, basePrice float64) []Variant {
	winners := d.winning(opts)

	variants := make([]Variant, 0, len(winners))
	for _, opt := range winners {
		v := Variant{
			Type:  variantType(opt),
			Name:  displayName(opt.RawText),
			Price: basePrice,
			SKU:   opt.DeclaredSKU,
		}
		if opt.DeclaredPrice != nil {
			v.Price = *opt.DeclaredPrice
		}
		if opt.DeclaredStock != nil {
			stock := *opt.DeclaredStock
			v.Stock = &stock
		}
		variants = append(variants, v)
	}
	return variants
}

// winning resolves collisions and returns the surviving options in final
// output order. It is idempotent: winning(winning(x)) == winning(x).
func (d *Deduplicator) winning(opts []ClassifiedOption) []ClassifiedOption {
	// Names already claimed by a confidently-typed candidate. An unknown
	// with the same name is a lower-quality duplicate, not a new dimension.
	claimed := make(map[string]bool)
	for _, opt := range opts {
		if opt.Type != TypeUnknown {
			claimed[normalize(opt.RawText)] = true
		}
	}

	winners := make(map[string]foldEntry)
	for i, opt := range opts {
		if opt.Type == TypeQuantity || opt.Type == TypeUnrelated {
			continue
		}
		if opt.Type == TypeUnknown && claimed[normalize(opt.RawText)] {
			continue
		}

		key := string(variantType(opt)) + "\x00" + normalize(opt.RawText)
		cur, ok := winners[key]
		if !ok || beats(opt, cur.opt) {
			winners[key] = foldEntry{opt: opt, seq: i}
		}
	}

	entries := make([]foldEntry, 0, len(winners))
	for _, e := range winners {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		ri, rj := typeRank(variantType(entries[i].opt)), typeRank(variantType(entries[j].opt))
		if ri != rj {
			return ri < rj
		}
		ti, tj := variantType(entries[i].opt), variantType(entries[j].opt)
		if ri == len(dimensionTypes) && ti != tj {
			return ti < tj
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]ClassifiedOption, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.opt)
	}
	return out
}

// beats reports whether a should replace b as the winner for a key:
// declared price/stock beats none, then classifier confidence, then the
// fixed strategy priority.
func beats(a, b ClassifiedOption) bool {
	ae, be := hasEvidence(a), hasEvidence(b)
	if ae != be {
		return ae
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Source.priority() > b.Source.priority()
}

func hasEvidence(o ClassifiedOption) bool {
	return o.DeclaredPrice != nil || o.DeclaredStock != nil
}

// variantType is the type string an option would carry in the final list.
// Kept unknowns surface under the dimension named by their container hint.
func variantType(o ClassifiedOption) string {
	if o.Type == TypeUnknown {
		if o.HintDimension != "" {
			return o.HintDimension
		}
		return string(TypeUnknown)
	}
	return string(o.Type)
}

// typeRank orders output groups: the recognized dimensions first in fixed
// order, then any kept unknown dimensions.
func typeRank(t string) int {
	for i, dt := range dimensionTypes {
		if t == string(dt) {
			return i
		}
	}
	return len(dimensionTypes)
}

// displayName trims and collapses whitespace but preserves the original
// casing the page showed.
func displayName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
