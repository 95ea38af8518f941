package remote

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/shopspring/decimal"
)

// Table names understood by the remote API.
const (
	TableProducts  = "products"
	TableSales     = "sales"
	TableSaleItems = "sale_items"
)

var knownTables = map[string]struct{}{
	TableProducts:  {},
	TableSales:     {},
	TableSaleItems: {},
}

// KnownTable reports whether table is part of the remote schema.
func KnownTable(table string) bool {
	_, ok := knownTables[table]
	return ok
}

// Record is one row as a column -> value map.
type Record map[string]any

// String returns the string value of key, or "" when absent.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Filter restricts Select to rows whose columns equal the given values.
type Filter map[string]any

// Backend is the generic record CRUD surface of the remote system.
type Backend interface {
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	Update(ctx context.Context, table, id string, patch Record) error
	Delete(ctx context.Context, table, id string) error
	Select(ctx context.Context, table string, filter Filter) ([]Record, error)
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey attaches key to ctx; backends that support it forward it
// with the next insert.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if strings.TrimSpace(key) == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKeyFrom returns the key attached by WithIdempotencyKey.
func IdempotencyKeyFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

func checkTable(table string) error {
	if !KnownTable(table) {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown table "+table)
	}
	return nil
}

// Int returns the integer value of key. JSON numbers, database integers and
// numeric strings are accepted.
func (r Record) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	case []byte:
		n, err := strconv.Atoi(string(v))
		return n, err == nil
	}
	return 0, false
}

// Decimal returns the decimal value of key, or zero when absent or malformed.
func (r Record) Decimal(key string) decimal.Decimal {
	switch v := r[key].(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case json.Number:
		d, _ := decimal.NewFromString(v.String())
		return d
	case string:
		d, _ := decimal.NewFromString(v)
		return d
	case []byte:
		d, _ := decimal.NewFromString(string(v))
		return d
	}
	return decimal.Zero
}
