package syncer

import (
	"context"
	"fmt"

	"github.com/angelmondragon/possync/internal/queue"
	"github.com/angelmondragon/possync/internal/remote"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
)

// Apply performs a's remote effect. actionID keys the idempotency of inserts;
// it may be empty for direct online calls.
func (e *Engine) Apply(ctx context.Context, actionID string, a queue.Action) error {
	switch act := a.(type) {
	case queue.CreateRecord:
		return e.insert(remote.WithIdempotencyKey(ctx, actionID), act.Table, remote.Record(act.Record))
	case queue.UpdateRecord:
		return e.backend.Update(ctx, act.Table, act.ID, remote.Record(act.Patch))
	case queue.DeleteRecord:
		err := e.backend.Delete(ctx, act.Table, act.ID)
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	case queue.AdjustStock:
		return e.adjustStock(ctx, act.ProductID, act.Delta)
	case queue.RecordSale:
		return e.replaySale(ctx, actionID, act)
	case nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "action is required")
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported action %T", a))
	}
}

// insert creates rec in table. The ids of replayed rows are fixed by the
// payload, so a unique conflict means an earlier attempt already created the
// row and the step counts as applied.
func (e *Engine) insert(ctx context.Context, table string, rec remote.Record) error {
	if _, err := e.backend.Insert(ctx, table, rec); err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return err
		}
		e.logg.Info(e.logg.WithFields(ctx, map[string]any{"table": table, "id": rec.String("id")}), "row already present; insert treated as applied")
	}
	return nil
}

// replaySale inserts the sale, its items, and then decrements stock for each
// item. The steps are not transactional; a failure fails the whole action and
// the retry skips rows that already exist.
func (e *Engine) replaySale(ctx context.Context, actionID string, sale queue.RecordSale) error {
	header := remote.Record{
		"id":             sale.SaleID,
		"terminal_id":    sale.TerminalID,
		"store_id":       sale.StoreID,
		"payment_method": string(sale.PaymentMethod),
		"total":          sale.Total.StringFixed(2),
	}
	if actionID != "" {
		header["client_ref"] = actionID
	}
	if !sale.CreatedAt.IsZero() {
		header["created_at"] = sale.CreatedAt.UTC()
	}
	if err := e.insert(remote.WithIdempotencyKey(ctx, actionID), remote.TableSales, header); err != nil {
		return fmt.Errorf("insert sale %s: %w", sale.SaleID, err)
	}

	for i, line := range sale.Items {
		itemID := fmt.Sprintf("%s-%d", sale.SaleID, i+1)
		item := remote.Record{
			"id":         itemID,
			"sale_id":    sale.SaleID,
			"product_id": line.ProductID,
			"quantity":   line.Quantity,
			"unit_price": line.UnitPrice.StringFixed(2),
			"subtotal":   line.Subtotal().StringFixed(2),
		}
		itemCtx := ctx
		if actionID != "" {
			itemCtx = remote.WithIdempotencyKey(ctx, actionID+":"+itemID)
		}
		if err := e.insert(itemCtx, remote.TableSaleItems, item); err != nil {
			return fmt.Errorf("insert sale item %s: %w", itemID, err)
		}
	}

	for _, line := range sale.Items {
		if err := e.adjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			return err
		}
	}

	if e.sales != nil {
		if _, err := e.sales.MarkSaleSynced(ctx, sale.SaleID); err != nil {
			e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "failed to mark local sale synced")
		}
	}
	return nil
}

// adjustStock reads the current remote stock and writes stock + delta.
func (e *Engine) adjustStock(ctx context.Context, productID string, delta int) error {
	rows, err := e.backend.Select(ctx, remote.TableProducts, remote.Filter{"id": productID})
	if err != nil {
		return fmt.Errorf("read stock of %s: %w", productID, err)
	}
	if len(rows) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
	}
	stock, ok := rows[0].Int("stock")
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("product %s has no readable stock", productID))
	}
	if err := e.backend.Update(ctx, remote.TableProducts, productID, remote.Record{"stock": stock + delta}); err != nil {
		return fmt.Errorf("write stock of %s: %w", productID, err)
	}
	return nil
}
