package models

import (
	"time"

	"github.com/google/uuid"
)

// LiveCustomer identifies a viewer reserving items during a live event.
type LiveCustomer struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstagramHandle string    `gorm:"column:instagram_handle;not null;uniqueIndex"`
	Name            *string   `gorm:"column:name"`
	Whatsapp        *string   `gorm:"column:whatsapp"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (LiveCustomer) TableName() string { return "live_customers" }
