package catalog

import (
	"strconv"
	"time"

	"github.com/angelmondragon/possync/internal/localstore"
	"github.com/angelmondragon/possync/internal/remote"
)

func productFromRecord(rec remote.Record, now time.Time) localstore.Product {
	p := localstore.Product{IsActive: true, UpdatedAt: now}
	ApplyRecord(&p, rec)
	return p
}

// ApplyRecord copies the product columns present in rec onto p.
func ApplyRecord(p *localstore.Product, rec remote.Record) {
	if _, ok := rec["id"]; ok {
		p.ID = rec.String("id")
	}
	if _, ok := rec["name"]; ok {
		p.Name = rec.String("name")
	}
	if _, ok := rec["barcode"]; ok {
		p.Barcode = rec.String("barcode")
	}
	if _, ok := rec["price"]; ok {
		p.Price = rec.Decimal("price")
	}
	if _, ok := rec["cost_price"]; ok {
		p.CostPrice = rec.Decimal("cost_price")
	}
	if stock, ok := rec.Int("stock"); ok {
		p.Stock = stock
	}
	if v, ok := rec["category_id"]; ok {
		if cat := rec.String("category_id"); v != nil && cat != "" {
			p.CategoryID = &cat
		} else {
			p.CategoryID = nil
		}
	}
	if v, ok := rec["is_active"]; ok {
		p.IsActive = boolValue(v, p.IsActive)
	}
	if v, ok := rec["updated_at"]; ok {
		p.UpdatedAt = timeValue(v, p.UpdatedAt)
	}
}

func boolValue(v any, fallback bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	case float64:
		return b != 0
	case string:
		parsed, err := strconv.ParseBool(b)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func timeValue(v any, fallback time.Time) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
	}
	return fallback
}
