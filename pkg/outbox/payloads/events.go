package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// SeparationStartedEvent signals that a cart entered the packing queue and
// received its bag number.
type SeparationStartedEvent struct {
	CartID      uuid.UUID `json:"cart_id"`
	LiveEventID uuid.UUID `json:"live_event_id"`
	BagNumber   int       `json:"bag_number"`
}

// UnitSeparatedEvent records one physical unit placed into a bag.
type UnitSeparatedEvent struct {
	CartID       uuid.UUID `json:"cart_id"`
	ItemID       uuid.UUID `json:"item_id"`
	ProductName  string    `json:"product_name"`
	SeparatedQty int       `json:"separated_qty"`
	TotalQty     int       `json:"total_qty"`
}

// ItemCancelledEvent is emitted when an item is cancelled during separation.
// RequiresRemoval is true when units were already in the bag.
type ItemCancelledEvent struct {
	CartID          uuid.UUID `json:"cart_id"`
	ItemID          uuid.UUID `json:"item_id"`
	ProductName     string    `json:"product_name"`
	RequiresRemoval bool      `json:"requires_removal"`
	RemovalQty      int       `json:"removal_qty"`
}

// QuantityReducedEvent is emitted when a line quantity shrinks mid-separation.
type QuantityReducedEvent struct {
	CartID      uuid.UUID `json:"cart_id"`
	ItemID      uuid.UUID `json:"item_id"`
	ProductName string    `json:"product_name"`
	OldQty      int       `json:"old_qty"`
	NewQty      int       `json:"new_qty"`
	RemovalQty  int       `json:"removal_qty"`
}

// RemovalConfirmedEvent records a human confirming units pulled back out of a bag.
type RemovalConfirmedEvent struct {
	CartID       uuid.UUID `json:"cart_id"`
	ItemID       uuid.UUID `json:"item_id"`
	ConfirmedQty int       `json:"confirmed_qty"`
	Outstanding  int       `json:"outstanding"`
}

// ReallocationCreatedEvent is emitted when a separated unit must move to
// another customer's bag.
type ReallocationCreatedEvent struct {
	AttentionLogID       uuid.UUID  `json:"attention_log_id"`
	OriginCartID         uuid.UUID  `json:"origin_cart_id"`
	OriginBagNumber      int        `json:"origin_bag_number"`
	DestinationCartID    *uuid.UUID `json:"destination_cart_id,omitempty"`
	DestinationBagNumber *int       `json:"destination_bag_number,omitempty"`
	ProductName          string     `json:"product_name"`
	Qty                  int        `json:"qty"`
}

// ReallocationResolvedEvent closes out a reallocation obligation.
type ReallocationResolvedEvent struct {
	AttentionLogID uuid.UUID `json:"attention_log_id"`
	OriginCartID   uuid.UUID `json:"origin_cart_id"`
	ResolvedAt     time.Time `json:"resolved_at"`
}

// BagSeparatedEvent is emitted when every unit of a bag is packed and all
// attention obligations are resolved.
type BagSeparatedEvent struct {
	CartID      uuid.UUID `json:"cart_id"`
	LiveEventID uuid.UUID `json:"live_event_id"`
	BagNumber   int       `json:"bag_number"`
	ItemCount   int       `json:"item_count"`
	SeparatedAt time.Time `json:"separated_at"`
}

// GiftAppliedEvent records a gift awarded to a cart.
type GiftAppliedEvent struct {
	CartID        uuid.UUID               `json:"cart_id"`
	GiftID        uuid.UUID               `json:"gift_id"`
	AppliedGiftID uuid.UUID               `json:"applied_gift_id"`
	RuleID        *uuid.UUID              `json:"rule_id,omitempty"`
	ConditionType enums.GiftConditionType `json:"condition_type,omitempty"`
	Qty           int                     `json:"qty"`
}

// GiftRevokedEvent records a gift award withdrawn before separation.
type GiftRevokedEvent struct {
	CartID        uuid.UUID `json:"cart_id"`
	GiftID        uuid.UUID `json:"gift_id"`
	AppliedGiftID uuid.UUID `json:"applied_gift_id"`
	Qty           int       `json:"qty"`
	Reason        string    `json:"reason,omitempty"`
}

// LabelLine is one printable row on a bag label.
type LabelLine struct {
	ProductName string `json:"product_name"`
	Size        string `json:"size,omitempty"`
	Color       string `json:"color,omitempty"`
	Qty         int    `json:"qty"`
	IsGift      bool   `json:"is_gift,omitempty"`
}

// LabelPrintRequestedEvent carries a fully rendered label job for the
// external label worker. The renderer never reads the database.
type LabelPrintRequestedEvent struct {
	CartID         uuid.UUID   `json:"cart_id"`
	LiveEventID    uuid.UUID   `json:"live_event_id"`
	BagNumber      int         `json:"bag_number"`
	ShopName       string      `json:"shop_name"`
	CustomerHandle string      `json:"customer_handle"`
	CustomerName   string      `json:"customer_name,omitempty"`
	Lines          []LabelLine `json:"lines"`
	TotalUnits     int         `json:"total_units"`
	Subtotal       string      `json:"subtotal"`
	ScanURL        string      `json:"scan_url"`
	Reprint        bool        `json:"reprint"`
	RequestedAt    time.Time   `json:"requested_at"`
}

// CartExpiredEvent records a cart abandoned in checkout past the payment TTL.
type CartExpiredEvent struct {
	CartID      uuid.UUID `json:"cart_id"`
	LiveEventID uuid.UUID `json:"live_event_id"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// LabelPrintedEvent confirms a label render completed.
type LabelPrintedEvent struct {
	CartID    uuid.UUID `json:"cart_id"`
	BagNumber int       `json:"bag_number"`
	PrintedAt time.Time `json:"printed_at"`
}
