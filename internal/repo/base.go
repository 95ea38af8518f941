package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base is embedded by the gorm-backed stores (terminal cache and remote tables).
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Tx runs fn inside one transaction bound to ctx. A returned error or a panic
// rolls the whole call back.
func (b Base) Tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return b.DB(ctx).Transaction(fn)
}

// Upsert scopes the next Create so a row colliding on keys overwrites the
// stored one (last write wins).
func Upsert(tx *gorm.DB, keys ...string) *gorm.DB {
	cols := make([]clause.Column, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, clause.Column{Name: k})
	}
	return tx.Clauses(clause.OnConflict{Columns: cols, UpdateAll: true})
}

// InsertOnce scopes the next Create so a row colliding on keys is skipped.
// RowsAffected is 0 when the row already existed.
func InsertOnce(tx *gorm.DB, keys ...string) *gorm.DB {
	cols := make([]clause.Column, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, clause.Column{Name: k})
	}
	return tx.Clauses(clause.OnConflict{Columns: cols, DoNothing: true})
}
