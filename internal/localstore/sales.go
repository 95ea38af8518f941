package localstore

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NewOfflineSale builds a sale from its line items, computing each subtotal
// and the total.
func NewOfflineSale(id, actionID, paymentMethod string, items []OfflineSaleItem, createdAt time.Time) OfflineSale {
	total := decimal.Zero
	lines := make([]OfflineSaleItem, len(items))
	for i, item := range items {
		item.SaleID = id
		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(item.Subtotal)
		lines[i] = item
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return OfflineSale{
		ID:            id,
		ActionID:      actionID,
		PaymentMethod: paymentMethod,
		Total:         total,
		CreatedAt:     createdAt,
		Items:         lines,
	}
}

// Validate checks that every subtotal equals quantity × unit price and that
// the total equals the sum of subtotals.
func (s OfflineSale) Validate() error {
	if s.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	if len(s.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale has no line items")
	}
	sum := decimal.Zero
	for i, item := range s.Items {
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: quantity must be positive", i))
		}
		want := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if !item.Subtotal.Equal(want) {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: subtotal %s != %s", i, item.Subtotal, want))
		}
		sum = sum.Add(item.Subtotal)
	}
	if !s.Total.Equal(sum) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("sale total %s != sum of subtotals %s", s.Total, sum))
	}
	return nil
}

// PutSale records a sale with its items. Synced is always stored as false.
func (s *Store) PutSale(ctx context.Context, sale OfflineSale) error {
	if err := sale.Validate(); err != nil {
		return err
	}
	sale.Synced = false
	sale.SyncedAt = nil
	for i := range sale.Items {
		sale.Items[i].ID = 0
		sale.Items[i].SaleID = sale.ID
	}
	return s.Tx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&sale).Error
	})
}

// ListSales returns the sale journal, newest first.
func (s *Store) ListSales(ctx context.Context) ([]OfflineSale, error) {
	var out []OfflineSale
	err := s.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkSaleSynced flips the synced flag of id. It reports whether this call
// performed the transition; an already synced or unknown sale returns false.
func (s *Store) MarkSaleSynced(ctx context.Context, id string) (bool, error) {
	var flipped bool
	err := s.Tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&OfflineSale{}).
			Where("id = ? AND synced = ?", id, false).
			Updates(map[string]any{"synced": true, "synced_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		flipped = res.RowsAffected == 1
		return nil
	})
	return flipped, err
}
