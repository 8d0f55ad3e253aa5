package scenario

import "fmt"

// Variant selects which behaviour of a scenario to run.
type Variant string

const (
	VariantSlow      Variant = "slow"
	VariantOptimized Variant = "optimized"
)

// Variants lists the recognized variants in display order.
var Variants = []Variant{VariantSlow, VariantOptimized}

// ParseVariant maps a request tag onto a Variant. Matching is exact.
// In permissive mode anything other than "slow" selects the optimized
// variant; in strict mode unrecognized tags fail with ErrInvalidVariant.
func ParseVariant(tag string, strict bool) (Variant, error) {
	switch Variant(tag) {
	case VariantSlow:
		return VariantSlow, nil
	case VariantOptimized:
		return VariantOptimized, nil
	}
	if strict {
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidVariant, tag, VariantSlow, VariantOptimized)
	}
	return VariantOptimized, nil
}
