package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AppendAction persists a at the tail of the queue and fills in its Seq.
func (s *Store) AppendAction(ctx context.Context, a *QueuedAction) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("action id is required")
	}
	if a.Kind == "" {
		return fmt.Errorf("action kind is required")
	}
	if a.EnqueuedAt.IsZero() {
		a.EnqueuedAt = time.Now().UTC()
	}
	a.Seq = 0
	return s.Tx(ctx, func(tx *gorm.DB) error {
		return tx.Create(a).Error
	})
}

// ListActions returns every pending action in enqueue order.
func (s *Store) ListActions(ctx context.Context) ([]QueuedAction, error) {
	var out []QueuedAction
	if err := s.DB(ctx).Order("seq ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetAction returns the pending action with id, or nil when absent.
func (s *Store) GetAction(ctx context.Context, id string) (*QueuedAction, error) {
	var a QueuedAction
	err := s.DB(ctx).Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAction removes the action with id. Deleting a missing id is a no-op.
func (s *Store) DeleteAction(ctx context.Context, id string) error {
	return s.Tx(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&QueuedAction{}).Error
	})
}

// IncrementActionRetry bumps the retry counter of id and returns the new
// value. It returns ErrNotFound when the action is gone.
func (s *Store) IncrementActionRetry(ctx context.Context, id string) (int, error) {
	var count int
	err := s.Tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&QueuedAction{}).
			Where("id = ?", id).
			Update("retry_count", gorm.Expr("retry_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&QueuedAction{}).Where("id = ?", id).Select("retry_count").Scan(&count).Error
	})
	return count, err
}

// CountActions returns the number of pending actions.
func (s *Store) CountActions(ctx context.Context) (int, error) {
	var n int64
	if err := s.DB(ctx).Model(&QueuedAction{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}
