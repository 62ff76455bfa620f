package enums

import "fmt"

// GiftConditionType selects how a gift rule decides eligibility.
type GiftConditionType string

const (
	GiftConditionAllPurchases   GiftConditionType = "all_purchases"
	GiftConditionMinValue       GiftConditionType = "min_value"
	GiftConditionFirstNPaid     GiftConditionType = "first_n_paid"
	GiftConditionFirstNReserved GiftConditionType = "first_n_reserved"
)

var validGiftConditionTypes = []GiftConditionType{
	GiftConditionAllPurchases,
	GiftConditionMinValue,
	GiftConditionFirstNPaid,
	GiftConditionFirstNReserved,
}

// String implements fmt.Stringer.
func (g GiftConditionType) String() string {
	return string(g)
}

// IsFirstN reports whether the condition is counter-bounded.
func (g GiftConditionType) IsFirstN() bool {
	return g == GiftConditionFirstNPaid || g == GiftConditionFirstNReserved
}

// IsValid reports whether the value is a known GiftConditionType.
func (g GiftConditionType) IsValid() bool {
	for _, candidate := range validGiftConditionTypes {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGiftConditionType converts raw input into a GiftConditionType.
func ParseGiftConditionType(value string) (GiftConditionType, error) {
	for _, candidate := range validGiftConditionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gift condition type %q", value)
}
