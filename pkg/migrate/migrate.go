package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// Target selects which embedded schema a command operates on.
type Target string

const (
	// TargetLocal is the terminal's sqlite store.
	TargetLocal Target = "local"
	// TargetRemote is the remote API's postgres schema.
	TargetRemote Target = "remote"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/local/*.sql migrations/remote/*.sql
var embedded embed.FS

// FS returns the embedded migrations for target, rooted at its directory.
func FS(target Target) (fs.FS, error) {
	switch target {
	case TargetLocal, TargetRemote:
		return fs.Sub(embedded, "migrations/"+string(target))
	default:
		return nil, fmt.Errorf("unknown migration target %q", target)
	}
}

// Dialect maps a target to the goose dialect its database speaks.
func Dialect(target Target) (goose.Dialect, error) {
	switch target {
	case TargetLocal:
		return goose.DialectSQLite3, nil
	case TargetRemote:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("unknown migration target %q", target)
	}
}

// NewProvider builds a goose provider over the embedded migrations for target.
// dialect overrides the target's default when non-empty (the remote schema is
// also applied to sqlite in dev).
func NewProvider(db *sql.DB, target Target, dialect goose.Dialect) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	fsys, err := FS(target)
	if err != nil {
		return nil, err
	}
	if dialect == "" {
		if dialect, err = Dialect(target); err != nil {
			return nil, err
		}
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider (%s): %w", target, err)
	}
	return provider, nil
}

// Up applies every pending migration for target.
func Up(ctx context.Context, db *sql.DB, target Target) error {
	provider, err := NewProvider(db, target, "")
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up (%s): %w", target, err)
	}
	return nil
}

// Run executes a goose command against the embedded migrations of target.
func Run(ctx context.Context, db *sql.DB, target Target, command string) ([]string, error) {
	provider, err := NewProvider(db, target, "")
	if err != nil {
		return nil, err
	}

	var results []*goose.MigrationResult
	switch command {
	case "up":
		results, err = provider.Up(ctx)
	case "down":
		var res *goose.MigrationResult
		res, err = provider.Down(ctx)
		if res != nil {
			results = append(results, res)
		}
	case "status":
		statuses, serr := provider.Status(ctx)
		if serr != nil {
			return nil, fmt.Errorf("goose status (%s): %w", target, serr)
		}
		lines := make([]string, 0, len(statuses))
		for _, st := range statuses {
			lines = append(lines, fmt.Sprintf("%-8s %s", st.State, st.Source.Path))
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("unsupported goose command %q", command)
	}
	if err != nil {
		return nil, fmt.Errorf("goose %s (%s): %w", command, target, err)
	}

	lines := make([]string, 0, len(results))
	for _, res := range results {
		lines = append(lines, res.String())
	}
	return lines, nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, target Target, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	version, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	provider, err := NewProvider(db, target, "")
	if err != nil {
		return err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == version:
		return nil

	case current < version:
		if _, err := provider.UpTo(ctx, version); err != nil {
			return fmt.Errorf("goose up-to %d: %w", version, err)
		}
		return nil

	default:
		if _, err := provider.DownTo(ctx, version); err != nil {
			return fmt.Errorf("goose down-to %d: %w", version, err)
		}
		return nil
	}
}
