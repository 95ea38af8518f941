package pos

import (
	"context"
	"errors"

	"github.com/angelmondragon/possync/internal/catalog"
	"github.com/angelmondragon/possync/internal/localstore"
	"github.com/angelmondragon/possync/internal/queue"
	"github.com/angelmondragon/possync/internal/remote"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
)

var detachedQueue = queue.New(nil)

// validateDetached checks a payload when there is no local queue.
func validateDetached(a queue.Action) error {
	return detachedQueue.Validate(a)
}

// applyLocal mirrors a's effect onto the cached catalog. Failures only cost
// cache freshness, so they are logged.
func (s *Service) applyLocal(ctx context.Context, a queue.Action) {
	if s.store == nil {
		return
	}
	var err error
	switch act := a.(type) {
	case queue.RecordSale:
		for _, line := range act.Items {
			if _, e := s.store.AdjustProductStock(ctx, line.ProductID, -line.Quantity); e != nil && !errors.Is(e, localstore.ErrNotFound) {
				err = e
			}
		}
	case queue.AdjustStock:
		if _, e := s.store.AdjustProductStock(ctx, act.ProductID, act.Delta); e != nil && !errors.Is(e, localstore.ErrNotFound) {
			err = e
		}
	case queue.CreateRecord:
		if act.Table == remote.TableProducts {
			p := localstore.Product{IsActive: true, UpdatedAt: s.now().UTC()}
			catalog.ApplyRecord(&p, remote.Record(act.Record))
			if p.ID != "" {
				err = s.store.PutProduct(ctx, p)
			}
		}
	case queue.UpdateRecord:
		if act.Table == remote.TableProducts {
			err = s.patchProduct(ctx, act.ID, remote.Record(act.Patch))
		}
	case queue.DeleteRecord:
		if act.Table == remote.TableProducts {
			err = s.store.DeleteProduct(ctx, act.ID)
		}
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to apply local effect")
	}
}

func (s *Service) patchProduct(ctx context.Context, id string, patch remote.Record) error {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	catalog.ApplyRecord(p, patch)
	p.ID = id
	p.UpdatedAt = s.now().UTC()
	return s.store.PutProduct(ctx, *p)
}

// IsOfflineUnavailable reports the error EnqueueOrSend returns in remote-only
// mode when the remote cannot be reached.
func IsOfflineUnavailable(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeOfflineUnavailable)
}
