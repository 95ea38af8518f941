package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/possync/internal/repo"
	"github.com/angelmondragon/possync/pkg/db"
	"github.com/angelmondragon/possync/pkg/migrate"
)

// ErrNotFound is returned by mutations addressed at a row that does not exist.
var ErrNotFound = errors.New("localstore: not found")

// Store is the terminal's durable state: cached catalog, pending actions and
// the offline sale journal. Every method is a single transaction.
type Store struct {
	repo.Base
	client *db.Client
}

// Open opens (or creates) the sqlite database at path and applies the
// embedded schema.
func Open(ctx context.Context, path string) (*Store, error) {
	client, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	sqlDB, err := client.SQL()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	if err := migrate.Up(ctx, sqlDB, migrate.TargetLocal); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrating local store: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging local store: %w", err)
	}

	return &Store{Base: repo.NewBase(client.DB()), client: client}, nil
}

// Ping verifies the underlying database is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.client.Close()
}
