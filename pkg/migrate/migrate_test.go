package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/possync/pkg/db"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	for _, target := range []Target{TargetLocal, TargetRemote} {
		fsys, err := FS(target)
		if err != nil {
			t.Fatalf("FS(%s): %v", target, err)
		}
		if err := ValidateFS(fsys); err != nil {
			t.Fatalf("validate %s: %v", target, err)
		}
	}
}

func TestRemoteSalesMigrationCarriesClientRef(t *testing.T) {
	fsys, err := FS(TargetRemote)
	if err != nil {
		t.Fatalf("FS: %v", err)
	}
	matches, err := fs.Glob(fsys, "*_create_sales.sql")
	if err != nil || len(matches) == 0 {
		t.Fatalf("no sales migration found: %v", err)
	}
	data, err := fs.ReadFile(fsys, matches[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	content := string(data)
	for _, sub := range []string{
		"client_ref TEXT UNIQUE",
		"FOREIGN KEY (sale_id) REFERENCES sales(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS sale_items",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestUpLocal_CreatesTables(t *testing.T) {
	client, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()

	sqlDB, err := client.SQL()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	ctx := context.Background()
	if err := Up(ctx, sqlDB, TargetLocal); err != nil {
		t.Fatalf("Up: %v", err)
	}
	// second run is a no-op
	if err := Up(ctx, sqlDB, TargetLocal); err != nil {
		t.Fatalf("Up twice: %v", err)
	}

	for _, table := range []string{"products", "queued_actions", "offline_sales", "offline_sale_items"} {
		if !client.DB().Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}

	lines, err := Run(ctx, sqlDB, TargetLocal, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 status lines, got %v", lines)
	}
}

func TestValidateDir_RejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	root := t.TempDir()
	path, err := CreateSQLMigration(root, TargetLocal, "Add Tender Types")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, "local") {
		t.Fatalf("expected migration under the local set, got %q", path)
	}
	if !strings.HasSuffix(path, "_add_tender_types.sql") {
		t.Fatalf("unexpected path %q", path)
	}
	if err := ValidateDir(filepath.Join(root, "local")); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := CreateSQLMigration(root, Target("edge"), "x"); err == nil {
		t.Fatal("expected unknown target error")
	}
}

func TestFS_UnknownTarget(t *testing.T) {
	if _, err := FS(Target("edge")); err == nil {
		t.Fatal("expected unknown target error")
	}
}
