package models

import (
	"time"

	"github.com/google/uuid"
)

// Gift is a stock-tracked promotional item.
type Gift struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string     `gorm:"column:name;not null"`
	SKU            *string    `gorm:"column:sku"`
	UnlimitedStock bool       `gorm:"column:unlimited_stock;not null;default:false"`
	StockQty       int        `gorm:"column:stock_qty;not null;default:0"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	StartAt        *time.Time `gorm:"column:start_at"`
	EndAt          *time.Time `gorm:"column:end_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// HasStock reports whether qty units can currently be awarded.
func (g Gift) HasStock(qty int) bool {
	return g.UnlimitedStock || g.StockQty >= qty
}
