package enums

import "fmt"

// AppliedGiftStatus is the lifecycle of a gift attached to a cart.
type AppliedGiftStatus string

const (
	AppliedGiftPendingSeparation AppliedGiftStatus = "pending_separation"
	AppliedGiftSeparated         AppliedGiftStatus = "separated"
	AppliedGiftRemoved           AppliedGiftStatus = "removed"
	AppliedGiftOutOfStock        AppliedGiftStatus = "out_of_stock"
)

var validAppliedGiftStatuses = []AppliedGiftStatus{
	AppliedGiftPendingSeparation,
	AppliedGiftSeparated,
	AppliedGiftRemoved,
	AppliedGiftOutOfStock,
}

// String implements fmt.Stringer.
func (a AppliedGiftStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AppliedGiftStatus.
func (a AppliedGiftStatus) IsValid() bool {
	for _, candidate := range validAppliedGiftStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAppliedGiftStatus converts raw input into an AppliedGiftStatus.
func ParseAppliedGiftStatus(value string) (AppliedGiftStatus, error) {
	for _, candidate := range validAppliedGiftStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid applied gift status %q", value)
}
