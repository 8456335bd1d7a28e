package variants

import "context"

// TypedOption is the {type, name} wire shape exchanged with the semantic
// verification service.
type TypedOption struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// VerifyRequest carries the rule-filtered candidate set plus the product
// context the service needs to judge it.
type VerifyRequest struct {
	Title     string
	BasePrice float64
	Options   []TypedOption
}

// VerifyResponse is the relabeled, deduplicated option set. Entries the
// service dropped were judged non-variants and are excluded downstream.
type VerifyResponse struct {
	Options []TypedOption
}

// Verifier is the optional external text-understanding service. Any error
// (missing credential, network failure, malformed or schema-violating
// response) makes the pipeline fall back to its rule-based output; a
// verifier failure is never a pipeline failure.
//
// A call is safe to repeat for the same input, but results are not
// guaranteed byte-identical across calls; exact assertions belong to the
// deterministic rule-based path.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
}
