package enums

import "fmt"

// SeparationItemStatus tracks the physical packing progress of a line item.
// Units move pending -> separated, or pending -> cancelled ->
// withdrawal_confirmed once every cancelled unit has been taken back out of
// the bag.
type SeparationItemStatus string

const (
	SeparationItemPending             SeparationItemStatus = "pending"
	SeparationItemSeparated           SeparationItemStatus = "separated"
	SeparationItemCancelled           SeparationItemStatus = "cancelled"
	SeparationItemWithdrawalConfirmed SeparationItemStatus = "withdrawal_confirmed"
)

var validSeparationItemStatuses = []SeparationItemStatus{
	SeparationItemPending,
	SeparationItemSeparated,
	SeparationItemCancelled,
	SeparationItemWithdrawalConfirmed,
}

// String implements fmt.Stringer.
func (s SeparationItemStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further unit transitions are possible.
func (s SeparationItemStatus) IsTerminal() bool {
	return s == SeparationItemSeparated || s == SeparationItemWithdrawalConfirmed
}

// IsValid reports whether the value is a known SeparationItemStatus.
func (s SeparationItemStatus) IsValid() bool {
	for _, candidate := range validSeparationItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSeparationItemStatus converts raw input into a SeparationItemStatus.
func ParseSeparationItemStatus(value string) (SeparationItemStatus, error) {
	for _, candidate := range validSeparationItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid separation item status %q", value)
}
