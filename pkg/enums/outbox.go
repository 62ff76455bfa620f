package enums

// OutboxEventType names a domain event recorded in the outbox.
type OutboxEventType string

const (
	EventUnitSeparated        OutboxEventType = "separation.unit_separated"
	EventItemCancelled        OutboxEventType = "separation.item_cancelled"
	EventQuantityReduced      OutboxEventType = "separation.quantity_reduced"
	EventRemovalConfirmed     OutboxEventType = "separation.removal_confirmed"
	EventReallocationCreated  OutboxEventType = "separation.reallocation_created"
	EventReallocationResolved OutboxEventType = "separation.reallocation_resolved"
	EventBagSeparated         OutboxEventType = "separation.bag_separated"
	EventSeparationStarted    OutboxEventType = "separation.started"
	EventGiftApplied          OutboxEventType = "gift.applied"
	EventGiftRevoked          OutboxEventType = "gift.revoked"
	EventLabelPrintRequested  OutboxEventType = "label.print_requested"
	EventLabelPrinted         OutboxEventType = "label.printed"
	EventCartExpired          OutboxEventType = "cart.expired"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateCart     OutboxAggregateType = "cart"
	AggregateCartItem OutboxAggregateType = "cart_item"
	AggregateGiftRule OutboxAggregateType = "gift_rule"
	AggregateEvent    OutboxAggregateType = "live_event"
)
