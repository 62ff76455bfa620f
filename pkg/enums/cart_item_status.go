package enums

import "fmt"

// CartItemStatus is the commercial status of a reserved line item. It is
// independent of the physical separation status tracked per unit.
type CartItemStatus string

const (
	CartItemStatusReserved  CartItemStatus = "reserved"
	CartItemStatusConfirmed CartItemStatus = "confirmed"
	CartItemStatusRemoved   CartItemStatus = "removed"
	CartItemStatusCancelled CartItemStatus = "cancelled"
)

var validCartItemStatuses = []CartItemStatus{
	CartItemStatusReserved,
	CartItemStatusConfirmed,
	CartItemStatusRemoved,
	CartItemStatusCancelled,
}

// String implements fmt.Stringer.
func (c CartItemStatus) String() string {
	return string(c)
}

// IsActive reports whether the line still counts toward the bag's contents.
func (c CartItemStatus) IsActive() bool {
	return c == CartItemStatusReserved || c == CartItemStatusConfirmed
}

// IsValid reports whether the value is a known CartItemStatus.
func (c CartItemStatus) IsValid() bool {
	for _, candidate := range validCartItemStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartItemStatus converts raw input into a CartItemStatus.
func ParseCartItemStatus(value string) (CartItemStatus, error) {
	for _, candidate := range validCartItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart item status %q", value)
}
