package variants

// Strategy identifies which extraction strategy produced a candidate.
type Strategy string

const (
	StrategyContainer      Strategy = "container"
	StrategyDropdown       Strategy = "dropdown"
	StrategyButtonGroup    Strategy = "button_group"
	StrategyStructuredData Strategy = "structured_data"
	StrategyDataAttribute  Strategy = "data_attribute"
	StrategyInteractive    Strategy = "interactive"
)

// priority orders strategies for collision resolution. Higher wins.
func (s Strategy) priority() int {
	switch s {
	case StrategyStructuredData:
		return 6
	case StrategyContainer:
		return 5
	case StrategyDropdown:
		return 4
	case StrategyButtonGroup:
		return 3
	case StrategyDataAttribute:
		return 2
	case StrategyInteractive:
		return 1
	default:
		return 0
	}
}

// OptionType is the inferred dimension of a candidate.
type OptionType string

const (
	TypeColor     OptionType = "color"
	TypeSize      OptionType = "size"
	TypeStorage   OptionType = "storage"
	TypeStyle     OptionType = "style"
	TypeMaterial  OptionType = "material"
	TypeQuantity  OptionType = "quantity"
	TypeUnrelated OptionType = "unrelated"
	TypeUnknown   OptionType = "unknown"
)

// dimensionTypes is the variant vocabulary in preferred output order.
// quantity and unrelated never reach the final list.
var dimensionTypes = []OptionType{TypeColor, TypeSize, TypeStorage, TypeStyle, TypeMaterial}

// Candidate is a raw, unverified piece of text that might be a product
// option. Candidates are never mutated after creation; later stages derive
// new records instead.
type Candidate struct {
	RawText       string   `json:"raw_text"`
	Source        Strategy `json:"source_strategy"`
	ContainerHint string   `json:"container_hint,omitempty"`
	DeclaredPrice *float64 `json:"declared_price,omitempty"`
	DeclaredStock *int     `json:"declared_stock,omitempty"`
	DeclaredSKU   string   `json:"declared_sku,omitempty"`
}

// ClassifiedOption is a Candidate plus the classifier's verdict.
type ClassifiedOption struct {
	Candidate

	Type OptionType `json:"inferred_type"`

	// HintDimension carries a dimension name found in the container hint
	// that is outside the recognized vocabulary (e.g. "flavor"). A kept
	// unknown surfaces under this name in the final list.
	HintDimension string `json:"hint_dimension,omitempty"`

	Confidence float64 `json:"confidence"`
}

// Variant is a finalized, deduplicated product option.
type Variant struct {
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Price  float64  `json:"price"`
	Stock  *int     `json:"stock,omitempty"`
	SKU    string   `json:"sku,omitempty"`
	Images []string `json:"images,omitempty"`
}

// Method records how the final variant list was produced.
type Method string

const (
	MethodAI        Method = "ai"
	MethodRuleBased Method = "rule_based"
)

// Verdict is the pipeline's output: the ordered variant list, the method
// that produced it, and a confidence indicator in [0,1].
type Verdict struct {
	Variants   []Variant `json:"variants"`
	Method     Method    `json:"method"`
	Confidence float64   `json:"confidence"`
}

// ProductInfo is the already-extracted context the pipeline needs from the
// page-fetching collaborator.
type ProductInfo struct {
	Title     string
	BasePrice float64
}
