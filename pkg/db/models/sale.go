package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a completed checkout. ClientRef carries the terminal's queued action
// id when the sale was replayed from the offline queue.
type Sale struct {
	ID            string          `gorm:"column:id;primaryKey" json:"id"`
	ClientRef     *string         `gorm:"column:client_ref;uniqueIndex" json:"client_ref"`
	TerminalID    string          `gorm:"column:terminal_id" json:"terminal_id"`
	StoreID       string          `gorm:"column:store_id" json:"store_id"`
	PaymentMethod string          `gorm:"column:payment_method;not null" json:"payment_method"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Sale) TableName() string { return "sales" }

// SaleItem is a single line of a Sale.
type SaleItem struct {
	ID        string          `gorm:"column:id;primaryKey" json:"id"`
	SaleID    string          `gorm:"column:sale_id;not null;index" json:"sale_id"`
	ProductID string          `gorm:"column:product_id;not null" json:"product_id"`
	Quantity  int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
}

func (SaleItem) TableName() string { return "sale_items" }

// All lists the remote schema for AutoMigrate in tests and dev.
func All() []any {
	return []any{&Product{}, &Sale{}, &SaleItem{}}
}
