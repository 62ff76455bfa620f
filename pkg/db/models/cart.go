package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// Cart is one viewer's reservation for one live event. Once separation
// starts the cart doubles as the bag: BagNumber, SeparationStatus and the
// label fields are owned by the separation workflow, everything else by the
// checkout flow.
type Cart struct {
	ID               uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LiveEventID      uuid.UUID                 `gorm:"column:live_event_id;type:uuid;not null;index"`
	CustomerID       uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null"`
	SellerID         *uuid.UUID                `gorm:"column:seller_id;type:uuid"`
	Status           enums.CartStatus          `gorm:"column:status;type:cart_status;not null;default:'open'"`
	Subtotal         decimal.Decimal           `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	BagNumber        *int                      `gorm:"column:bag_number;uniqueIndex:ux_carts_event_bag,where:bag_number IS NOT NULL"`
	SeparationStatus enums.SeparationBagStatus `gorm:"column:separation_status;type:separation_bag_status;not null;default:'pending'"`
	LabelPrintedAt   *time.Time                `gorm:"column:label_printed_at"`
	NeedsReprint     bool                      `gorm:"column:needs_label_reprint;not null;default:false"`
	Customer         *LiveCustomer             `gorm:"foreignKey:CustomerID"`
	Items            []CartItem                `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	AppliedGifts     []AppliedGift             `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	AttentionLogs    []AttentionLog            `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
