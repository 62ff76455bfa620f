package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumehaus/liveshop-backend/pkg/enums"
)

// LiveEvent is a single live-video sale session.
type LiveEvent struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title     string                `gorm:"column:title;not null"`
	Status    enums.LiveEventStatus `gorm:"column:status;type:live_event_status;not null;default:'planned'"`
	StartsAt  *time.Time            `gorm:"column:starts_at"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (LiveEvent) TableName() string { return "live_events" }
