package localstore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the terminal's cached copy of a remote catalog row.
type Product struct {
	ID         string          `gorm:"column:id;primaryKey" json:"id"`
	Name       string          `gorm:"column:name" json:"name"`
	Barcode    string          `gorm:"column:barcode" json:"barcode"`
	Price      decimal.Decimal `gorm:"column:price" json:"price"`
	CostPrice  decimal.Decimal `gorm:"column:cost_price" json:"cost_price"`
	Stock      int             `gorm:"column:stock" json:"stock"`
	CategoryID *string         `gorm:"column:category_id" json:"category_id,omitempty"`
	IsActive   bool            `gorm:"column:is_active" json:"is_active"`
	UpdatedAt  time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// QueuedAction is a persisted mutation waiting for replay. Seq defines FIFO
// order; ID is the stable external identifier.
type QueuedAction struct {
	Seq        int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	ID         string    `gorm:"column:id"`
	Kind       string    `gorm:"column:kind"`
	Payload    string    `gorm:"column:payload"`
	RetryCount int       `gorm:"column:retry_count"`
	EnqueuedAt time.Time `gorm:"column:enqueued_at"`
}

func (QueuedAction) TableName() string { return "queued_actions" }

// OfflineSale is a checkout completed on this terminal. Synced only ever moves
// from false to true.
type OfflineSale struct {
	ID            string            `gorm:"column:id;primaryKey" json:"id"`
	ActionID      string            `gorm:"column:action_id" json:"action_id"`
	PaymentMethod string            `gorm:"column:payment_method" json:"payment_method"`
	Total         decimal.Decimal   `gorm:"column:total" json:"total"`
	Synced        bool              `gorm:"column:synced" json:"synced"`
	CreatedAt     time.Time         `gorm:"column:created_at" json:"created_at"`
	SyncedAt      *time.Time        `gorm:"column:synced_at" json:"synced_at,omitempty"`
	Items         []OfflineSaleItem `gorm:"foreignKey:SaleID;references:ID" json:"items"`
}

func (OfflineSale) TableName() string { return "offline_sales" }

type OfflineSaleItem struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	SaleID    string          `gorm:"column:sale_id" json:"-"`
	ProductID string          `gorm:"column:product_id" json:"product_id"`
	Quantity  int             `gorm:"column:quantity" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal" json:"subtotal"`
}

func (OfflineSaleItem) TableName() string { return "offline_sale_items" }
