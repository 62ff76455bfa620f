package enums

import "fmt"

// GiftChannelScope restricts a gift rule to a sales channel.
type GiftChannelScope string

const (
	GiftScopeCatalogOnly  GiftChannelScope = "catalog_only"
	GiftScopeLiveOnly     GiftChannelScope = "live_only"
	GiftScopeBoth         GiftChannelScope = "both"
	GiftScopeLiveSpecific GiftChannelScope = "live_specific"
)

var validGiftChannelScopes = []GiftChannelScope{
	GiftScopeCatalogOnly,
	GiftScopeLiveOnly,
	GiftScopeBoth,
	GiftScopeLiveSpecific,
}

// String implements fmt.Stringer.
func (g GiftChannelScope) String() string {
	return string(g)
}

// MatchesLive reports whether the scope covers live-event carts.
func (g GiftChannelScope) MatchesLive() bool {
	return g == GiftScopeLiveOnly || g == GiftScopeBoth || g == GiftScopeLiveSpecific
}

// IsValid reports whether the value is a known GiftChannelScope.
func (g GiftChannelScope) IsValid() bool {
	for _, candidate := range validGiftChannelScopes {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGiftChannelScope converts raw input into a GiftChannelScope.
func ParseGiftChannelScope(value string) (GiftChannelScope, error) {
	for _, candidate := range validGiftChannelScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gift channel scope %q", value)
}
