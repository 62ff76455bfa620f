package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// GiftRule is a condition-triggered policy that awards a gift to qualifying
// carts. Higher priority rules are evaluated first.
type GiftRule struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string                  `gorm:"column:name;not null"`
	IsActive           bool                    `gorm:"column:is_active;not null;default:true"`
	ChannelScope       enums.GiftChannelScope  `gorm:"column:channel_scope;type:gift_channel_scope;not null"`
	LiveEventID        *uuid.UUID              `gorm:"column:live_event_id;type:uuid"`
	StartAt            *time.Time              `gorm:"column:start_at"`
	EndAt              *time.Time              `gorm:"column:end_at"`
	Priority           int                     `gorm:"column:priority;not null;default:0"`
	ConditionType      enums.GiftConditionType `gorm:"column:condition_type;type:gift_condition_type;not null"`
	ConditionValue     *decimal.Decimal        `gorm:"column:condition_value;type:numeric(12,2)"`
	GiftID             uuid.UUID               `gorm:"column:gift_id;type:uuid;not null"`
	GiftQty            int                     `gorm:"column:gift_qty;not null;default:1"`
	MaxPerCustomer     *int                    `gorm:"column:max_per_customer"`
	MaxTotalAwards     *int                    `gorm:"column:max_total_awards"`
	CurrentAwardsCount int                     `gorm:"column:current_awards_count;not null;default:0"`
	Gift               *Gift                   `gorm:"foreignKey:GiftID"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// WindowContains reports whether now falls inside the rule's active window.
// An absent bound is unbounded on that side.
func (r GiftRule) WindowContains(now time.Time) bool {
	if r.StartAt != nil && now.Before(*r.StartAt) {
		return false
	}
	if r.EndAt != nil && now.After(*r.EndAt) {
		return false
	}
	return true
}

// GlobalCapReached reports whether the rule exhausted its total award budget.
func (r GiftRule) GlobalCapReached() bool {
	return r.MaxTotalAwards != nil && r.CurrentAwardsCount >= *r.MaxTotalAwards
}
