package enums

import "fmt"

// AttentionKind classifies the manual obligation blocking a bag.
type AttentionKind string

const (
	AttentionCancellation      AttentionKind = "cancellation"
	AttentionQuantityReduction AttentionKind = "quantity_reduction"
	AttentionReallocation      AttentionKind = "reallocation"
	AttentionGeneric           AttentionKind = "generic"
)

var validAttentionKinds = []AttentionKind{
	AttentionCancellation,
	AttentionQuantityReduction,
	AttentionReallocation,
	AttentionGeneric,
}

// String implements fmt.Stringer.
func (a AttentionKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AttentionKind.
func (a AttentionKind) IsValid() bool {
	for _, candidate := range validAttentionKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAttentionKind converts raw input into an AttentionKind.
func ParseAttentionKind(value string) (AttentionKind, error) {
	for _, candidate := range validAttentionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attention kind %q", value)
}
