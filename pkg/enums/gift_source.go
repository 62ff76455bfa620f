package enums

// GiftSource distinguishes how a gift landed on a cart.
type GiftSource string

const (
	GiftSourceRule   GiftSource = "rule"
	GiftSourceRaffle GiftSource = "raffle"
	GiftSourceManual GiftSource = "manual"
)

// String implements fmt.Stringer.
func (g GiftSource) String() string {
	return string(g)
}
