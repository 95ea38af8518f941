package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/possync/pkg/config"
	"github.com/angelmondragon/possync/pkg/db"
	"github.com/angelmondragon/possync/pkg/db/models"
	"github.com/angelmondragon/possync/pkg/logger"
)

// MaybeRunDev applies the remote schema automatically when the remote API runs
// in dev mode with auto-migrate enabled. The embedded SQL is postgres-only, so
// a sqlite-backed dev API falls back to gorm's AutoMigrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.DB.AutoMigrate {
		return nil
	}

	meta := map[string]any{"env": cfg.App.Env, "target": TargetRemote, "driver": client.Driver()}
	ctx = logg.WithFields(ctx, meta)

	if client.Driver() == db.DriverSQLite {
		logg.Info(ctx, "auto-migrating remote models (dev auto-run)")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrating models: %w", err)
		}
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running goose migrations (dev auto-run)")
	if err := Up(ctx, sqlDB, TargetRemote); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
