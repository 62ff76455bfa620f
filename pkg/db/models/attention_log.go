package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// AttentionLog is a manual obligation created when physical reality and the
// database diverge: a unit cancelled after packing, a quantity reduced on a
// separated line, or a unit reallocated to another bag. A bag with any
// unresolved log is blocked.
type AttentionLog struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID               uuid.UUID           `gorm:"column:cart_id;type:uuid;not null;index"`
	ItemID               *uuid.UUID          `gorm:"column:item_id;type:uuid"`
	Kind                 enums.AttentionKind `gorm:"column:kind;type:attention_kind;not null"`
	ProductName          string              `gorm:"column:product_name;not null"`
	Size                 *string             `gorm:"column:size"`
	Qty                  int                 `gorm:"column:qty;not null;default:1"`
	OriginBagNumber      int                 `gorm:"column:origin_bag_number;not null"`
	DestinationCartID    *uuid.UUID          `gorm:"column:destination_cart_id;type:uuid"`
	DestinationBagNumber *int                `gorm:"column:destination_bag_number"`
	Description          string              `gorm:"column:description;not null"`
	RemovedFromOrigin    bool                `gorm:"column:removed_from_origin;not null;default:false"`
	PlacedInDestination  bool                `gorm:"column:placed_in_destination;not null;default:false"`
	ResolvedAt           *time.Time          `gorm:"column:resolved_at"`
	ResolvedBy           *uuid.UUID          `gorm:"column:resolved_by;type:uuid"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// Resolvable reports whether the confirmation flags satisfy the resolution
// invariant: removed from origin, and placed in destination when one exists.
func (a AttentionLog) Resolvable() bool {
	if !a.RemovedFromOrigin {
		return false
	}
	if a.DestinationCartID == nil {
		return true
	}
	return a.PlacedInDestination
}

// Resolved reports whether the obligation has been closed out.
func (a AttentionLog) Resolved() bool {
	return a.ResolvedAt != nil
}
