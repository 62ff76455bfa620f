package enums

import "fmt"

// CartStatus tracks the lifecycle of a live cart from reservation to payment.
type CartStatus string

const (
	CartStatusOpen            CartStatus = "open"
	CartStatusAwaitingPayment CartStatus = "awaiting_payment"
	CartStatusPaid            CartStatus = "paid"
	CartStatusCancelled       CartStatus = "cancelled"
	CartStatusExpired         CartStatus = "expired"
)

var validCartStatuses = []CartStatus{
	CartStatusOpen,
	CartStatusAwaitingPayment,
	CartStatusPaid,
	CartStatusCancelled,
	CartStatusExpired,
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the cart can no longer change hands.
func (c CartStatus) IsTerminal() bool {
	return c == CartStatusCancelled || c == CartStatusExpired
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
