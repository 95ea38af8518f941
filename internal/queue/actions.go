package queue

import (
	"fmt"
	"time"

	"github.com/angelmondragon/possync/pkg/enums"
	"github.com/shopspring/decimal"
)

// Action is one queued mutation. Each kind has its own payload type.
type Action interface {
	Kind() enums.ActionKind
}

// selfValidating actions check cross-field rules the struct tags cannot.
type selfValidating interface {
	Validate() error
}

// CreateRecord inserts Record into Table.
type CreateRecord struct {
	Table  string         `json:"table" validate:"required,max=64"`
	Record map[string]any `json:"record" validate:"required,min=1"`
}

func (CreateRecord) Kind() enums.ActionKind { return enums.ActionKindCreateRecord }

// UpdateRecord applies Patch to the row ID of Table.
type UpdateRecord struct {
	Table string         `json:"table" validate:"required,max=64"`
	ID    string         `json:"id" validate:"required"`
	Patch map[string]any `json:"patch" validate:"required,min=1"`
}

func (UpdateRecord) Kind() enums.ActionKind { return enums.ActionKindUpdateRecord }

// DeleteRecord removes the row ID of Table.
type DeleteRecord struct {
	Table string `json:"table" validate:"required,max=64"`
	ID    string `json:"id" validate:"required"`
}

func (DeleteRecord) Kind() enums.ActionKind { return enums.ActionKindDeleteRecord }

// AdjustStock adds Delta to the remote stock of ProductID.
type AdjustStock struct {
	ProductID string `json:"product_id" validate:"required"`
	Delta     int    `json:"delta" validate:"ne=0"`
	Reason    string `json:"reason,omitempty" validate:"max=200"`
}

func (AdjustStock) Kind() enums.ActionKind { return enums.ActionKindAdjustStock }

// SaleLine is one line of a RecordSale.
type SaleLine struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

const moneyScale = 2

// Subtotal is quantity × unit price.
func (l SaleLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// RecordSale is a completed checkout: the sale row, its line items and the
// stock decrement of each item.
type RecordSale struct {
	SaleID        string              `json:"sale_id" validate:"required"`
	TerminalID    string              `json:"terminal_id,omitempty"`
	StoreID       string              `json:"store_id,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required"`
	Items         []SaleLine          `json:"items" validate:"required,min=1,dive"`
	Total         decimal.Decimal     `json:"total"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (RecordSale) Kind() enums.ActionKind { return enums.ActionKindRecordSale }

// ComputeTotal returns the sum of line subtotals.
func (s RecordSale) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Items {
		total = total.Add(line.Subtotal())
	}
	return total
}

func (s RecordSale) Validate() error {
	if !s.PaymentMethod.IsValid() {
		return fmt.Errorf("invalid payment method %q", s.PaymentMethod)
	}
	for i, line := range s.Items {
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("items[%d]: unit price must not be negative", i)
		}
		// Money columns hold cents; finer prices would round apart from the total.
		if !line.UnitPrice.Equal(line.UnitPrice.Round(moneyScale)) {
			return fmt.Errorf("items[%d]: unit price %s has more than %d decimal places", i, line.UnitPrice, moneyScale)
		}
	}
	if want := s.ComputeTotal(); !s.Total.Equal(want) {
		return fmt.Errorf("total %s does not equal sum of subtotals %s", s.Total, want)
	}
	return nil
}
