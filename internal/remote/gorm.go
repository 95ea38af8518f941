package remote

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/angelmondragon/possync/internal/repo"
	"github.com/angelmondragon/possync/pkg/db"
	pkgerrors "github.com/angelmondragon/possync/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var columnRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// GormBackend serves the record CRUD surface straight from the remote
// database. It backs the remote API.
type GormBackend struct {
	repo.Base
	// idempotentInserts makes inserts into sales and sale_items return the
	// existing row when the primary key is already present.
	idempotentInserts bool
	now               func() time.Time
}

type GormOption func(*GormBackend)

// WithIdempotentSaleInserts turns replayed sale inserts into no-ops.
func WithIdempotentSaleInserts(enabled bool) GormOption {
	return func(b *GormBackend) { b.idempotentInserts = enabled }
}

func NewGormBackend(conn *gorm.DB, opts ...GormOption) *GormBackend {
	b := &GormBackend{Base: repo.NewBase(conn), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *GormBackend) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	row, err := sanitize(rec)
	if err != nil {
		return nil, err
	}
	id := Record(row).String("id")
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}
	b.stamp(table, row, true)

	q := b.DB(ctx).Table(table)
	if b.idempotentInserts && (table == TableSales || table == TableSaleItems) {
		q = repo.InsertOnce(q)
	}
	if err := q.Create(row).Error; err != nil {
		return nil, translate(err, "insert into "+table)
	}

	return b.get(ctx, table, id)
}

func (b *GormBackend) Update(ctx context.Context, table, id string, patch Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	row, err := sanitize(patch)
	if err != nil {
		return err
	}
	delete(row, "id")
	if len(row) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "patch is empty")
	}
	b.stamp(table, row, false)

	res := b.DB(ctx).Table(table).Where("id = ?", id).Updates(row)
	if res.Error != nil {
		return translate(res.Error, "update "+table)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s not found", table, id))
	}
	return nil
}

func (b *GormBackend) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	res := b.DB(ctx).Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if res.Error != nil {
		return translate(res.Error, "delete from "+table)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s not found", table, id))
	}
	return nil
}

func (b *GormBackend) Select(ctx context.Context, table string, filter Filter) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	q := b.DB(ctx).Table(table)
	for col, val := range filter {
		if !columnRe.MatchString(col) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid filter column "+col)
		}
		q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: val})
	}

	var rows []map[string]any
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, translate(err, "select from "+table)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalize(row))
	}
	return out, nil
}

func (b *GormBackend) get(ctx context.Context, table, id string) (Record, error) {
	rows, err := b.Select(ctx, table, Filter{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s not found", table, id))
	}
	return rows[0], nil
}

func (b *GormBackend) stamp(table string, row map[string]any, create bool) {
	now := b.now().UTC()
	switch table {
	case TableProducts:
		if create {
			if _, ok := row["created_at"]; !ok {
				row["created_at"] = now
			}
		}
		row["updated_at"] = now
	case TableSales:
		if _, ok := row["created_at"]; !ok && create {
			row["created_at"] = now
		}
	}
}

func sanitize(rec Record) (map[string]any, error) {
	if len(rec) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record is empty")
	}
	row := make(map[string]any, len(rec))
	for k, v := range rec {
		if !columnRe.MatchString(k) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid column "+k)
		}
		row[k] = v
	}
	return row, nil
}

func normalize(row map[string]any) Record {
	out := make(Record, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			out[k] = string(b)
			continue
		}
		out[k] = v
	}
	return out
}

func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, op)
	}
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, op)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
