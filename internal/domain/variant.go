package domain

// VariantKind identifies one of the three staged image variants.
type VariantKind string

const (
	VariantStagingA  VariantKind = "staging-a"
	VariantStagingB  VariantKind = "staging-b"
	VariantActiveUse VariantKind = "active-use"
)

// Variant describes a staged image slot: its presentation annotation and the
// scene prompt sent to the image model.
type Variant struct {
	Kind        VariantKind
	Label       string
	Description string
	Prompt      string
}

// Variants is the fixed, ordered variant table. Outcome images always follow
// this order.
var Variants = []Variant{
	{
		Kind:        VariantStagingA,
		Label:       "Hero Staging A",
		Description: "Architectural • No Humans",
		Prompt:      "pure product hero shot on elevated minimalist architectural staging, premium surfaces, refined visual context, NO humans, cinematic studio lighting",
	},
	{
		Kind:        VariantStagingB,
		Label:       "Hero Staging B",
		Description: "Premium Props • No Humans",
		Prompt:      "premium product staging inside a luxury lifestyle environment with high-end commercial props, atmospheric lighting, NO humans, sophisticated composition",
	},
	{
		Kind:        VariantActiveUse,
		Label:       "Active Single Use",
		Description: "Mid-Action Usage • 1 Model",
		Prompt:      "active usage lifestyle photograph with exactly one human model caught in the precise moment of using the product as intended, authentic expression, correct hand anatomy (2 arms, 2 hands, 5 fingers per hand, no disembodied parts)",
	},
}

// LookupVariant returns the table entry for kind.
func LookupVariant(kind VariantKind) (Variant, bool) {
	for _, v := range Variants {
		if v.Kind == kind {
			return v, true
		}
	}
	return Variant{}, false
}

// Annotate attaches the variant's presentation label to img.
func (v Variant) Annotate(img Image) ImageVariant {
	return ImageVariant{
		Kind:        v.Kind,
		Label:       v.Label,
		Description: v.Description,
		Image:       img,
	}
}
