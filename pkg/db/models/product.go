package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the authoritative catalog row served by the remote API.
type Product struct {
	ID         string          `gorm:"column:id;primaryKey" json:"id"`
	Name       string          `gorm:"column:name;not null" json:"name"`
	Barcode    string          `gorm:"column:barcode;index" json:"barcode"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	CostPrice  decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null;default:0" json:"cost_price"`
	Stock      int             `gorm:"column:stock;not null;default:0" json:"stock"`
	CategoryID *string         `gorm:"column:category_id" json:"category_id"`
	IsActive   bool            `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string { return "products" }
