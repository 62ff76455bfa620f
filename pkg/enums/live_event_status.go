package enums

// LiveEventStatus tracks a live event through its lifecycle.
type LiveEventStatus string

const (
	LiveEventPlanned LiveEventStatus = "planned"
	LiveEventLive    LiveEventStatus = "live"
	LiveEventClosed  LiveEventStatus = "closed"
)

// String implements fmt.Stringer.
func (l LiveEventStatus) String() string {
	return string(l)
}
