package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// CartItem is one product-variant line inside a cart. Physical packing is
// tracked per unit: SeparatedQty counts units confirmed in the bag,
// PendingRemovalQty counts units that were separated and later cancelled,
// RemovalConfirmedQty counts how many of those a human already took back out.
type CartItem struct {
	ID                      uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID                  uuid.UUID                  `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID               uuid.UUID                  `gorm:"column:product_id;type:uuid;not null"`
	ProductName             string                     `gorm:"column:product_name;not null"`
	Color                   *string                    `gorm:"column:color"`
	Size                    *string                    `gorm:"column:size"`
	Qty                     int                        `gorm:"column:qty;not null"`
	UnitPrice               decimal.Decimal            `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Status                  enums.CartItemStatus       `gorm:"column:status;type:cart_item_status;not null;default:'reserved'"`
	SeparationStatus        enums.SeparationItemStatus `gorm:"column:separation_status;type:separation_item_status;not null;default:'pending'"`
	SeparatedQty            int                        `gorm:"column:separated_qty;not null;default:0"`
	PendingRemovalQty       int                        `gorm:"column:pending_removal_qty;not null;default:0"`
	RemovalConfirmedQty     int                        `gorm:"column:removal_confirmed_qty;not null;default:0"`
	WasSeparatedBeforeCancel bool                      `gorm:"column:was_separated_before_cancel;not null;default:false"`
	IsGift                  bool                       `gorm:"column:is_gift;not null;default:false"`
	GiftSource              *enums.GiftSource          `gorm:"column:gift_source;type:gift_source"`
	Notes                   *string                    `gorm:"column:notes"`
	CreatedAt               time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

// OutstandingRemovals is the number of cancelled units still physically
// inside the bag.
func (i CartItem) OutstandingRemovals() int {
	out := i.PendingRemovalQty - i.RemovalConfirmedQty
	if out < 0 {
		return 0
	}
	return out
}

// PendingUnits is the number of active units not yet marked separated.
func (i CartItem) PendingUnits() int {
	if !i.Status.IsActive() {
		return 0
	}
	pending := i.Qty - i.SeparatedQty
	if pending < 0 {
		return 0
	}
	return pending
}
