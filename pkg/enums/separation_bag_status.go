package enums

import "fmt"

// SeparationBagStatus is the derived packing status of a whole bag.
type SeparationBagStatus string

const (
	SeparationBagPending    SeparationBagStatus = "pending"
	SeparationBagSeparating SeparationBagStatus = "separating"
	SeparationBagSeparated  SeparationBagStatus = "separated"
	SeparationBagAttention  SeparationBagStatus = "attention"
	SeparationBagCancelled  SeparationBagStatus = "cancelled"
)

var validSeparationBagStatuses = []SeparationBagStatus{
	SeparationBagPending,
	SeparationBagSeparating,
	SeparationBagSeparated,
	SeparationBagAttention,
	SeparationBagCancelled,
}

// String implements fmt.Stringer.
func (s SeparationBagStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SeparationBagStatus.
func (s SeparationBagStatus) IsValid() bool {
	for _, candidate := range validSeparationBagStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSeparationBagStatus converts raw input into a SeparationBagStatus.
func ParseSeparationBagStatus(value string) (SeparationBagStatus, error) {
	for _, candidate := range validSeparationBagStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid separation bag status %q", value)
}
