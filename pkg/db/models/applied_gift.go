package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// AppliedGift links a cart to a gift it currently holds. AppliedByRuleID is
// nil for manual and raffle awards.
type AppliedGift struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID               uuid.UUID               `gorm:"column:cart_id;type:uuid;not null;index"`
	GiftID               uuid.UUID               `gorm:"column:gift_id;type:uuid;not null"`
	Qty                  int                     `gorm:"column:qty;not null;default:1"`
	Status               enums.AppliedGiftStatus `gorm:"column:status;type:applied_gift_status;not null;default:'pending_separation'"`
	AppliedByRuleID      *uuid.UUID              `gorm:"column:applied_by_rule_id;type:uuid"`
	AppliedByRaffleID    *uuid.UUID              `gorm:"column:applied_by_raffle_id;type:uuid"`
	SeparationConfirmed  bool                    `gorm:"column:separation_confirmed;not null;default:false"`
	Gift                 *Gift                   `gorm:"foreignKey:GiftID"`
	Rule                 *GiftRule               `gorm:"foreignKey:AppliedByRuleID"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
