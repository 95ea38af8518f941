package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/possync/internal/repo"
)

const productBatchSize = 200

// PutProduct upserts p by id. Last write wins.
func (s *Store) PutProduct(ctx context.Context, p Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	return s.Tx(ctx, func(tx *gorm.DB) error {
		return repo.Upsert(tx, "id").Create(&p).Error
	})
}

// ListProducts returns every cached product in no particular order.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := s.DB(ctx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct returns the product with id, or nil when it is not cached.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.firstProduct(ctx, "id = ?", id)
}

// GetProductByBarcode returns the product whose barcode equals code exactly,
// or nil when none is cached.
func (s *Store) GetProductByBarcode(ctx context.Context, code string) (*Product, error) {
	if code == "" {
		return nil, nil
	}
	return s.firstProduct(ctx, "barcode = ?", code)
}

func (s *Store) firstProduct(ctx context.Context, query string, arg any) (*Product, error) {
	var p Product
	err := s.DB(ctx).Where(query, arg).Limit(1).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ClearProducts empties the product cache.
func (s *Store) ClearProducts(ctx context.Context) error {
	return s.Tx(ctx, func(tx *gorm.DB) error {
		return tx.Exec("DELETE FROM products").Error
	})
}

// ReplaceProducts swaps the whole cache for products atomically, so rows
// deleted upstream do not linger.
func (s *Store) ReplaceProducts(ctx context.Context, products []Product) error {
	now := time.Now().UTC()
	return s.Tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM products").Error; err != nil {
			return err
		}
		if len(products) == 0 {
			return nil
		}
		rows := make([]Product, len(products))
		copy(rows, products)
		for i := range rows {
			if rows[i].UpdatedAt.IsZero() {
				rows[i].UpdatedAt = now
			}
		}
		return repo.Upsert(tx, "id").CreateInBatches(&rows, productBatchSize).Error
	})
}

// DeleteProduct removes a cached product. Missing ids are ignored.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.Tx(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&Product{}).Error
	})
}

// AdjustProductStock adds delta to the cached stock of id and returns the new
// level. It returns ErrNotFound when the product is not cached.
func (s *Store) AdjustProductStock(ctx context.Context, id string, delta int) (int, error) {
	var stock int
	err := s.Tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&Product{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"stock":      gorm.Expr("stock + ?", delta),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&Product{}).Where("id = ?", id).Select("stock").Scan(&stock).Error
	})
	return stock, err
}
