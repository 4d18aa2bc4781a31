package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/yardgate-backend/pkg/config"
	"github.com/angelmondragon/yardgate-backend/pkg/db"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations at boot. It runs in dev with
// YARDGATE_AUTO_MIGRATE set, and always for the sqlite local mode, whose
// database file starts empty.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !shouldAutoRun(cfg, client.Dialect()) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	return autoRun(ctx, logg, sqlDB, client.Dialect(), DefaultDir)
}

func shouldAutoRun(cfg *config.Config, dialect string) bool {
	if dialect == DialectSQLite {
		return true
	}
	return cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate
}

func autoRun(ctx context.Context, logg *logger.Logger, sqlDB *sql.DB, dialect, dir string) error {
	if err := ValidateDir(dir); err != nil {
		return fmt.Errorf("validating %s: %w", dir, err)
	}
	if err := setDialect(dialect); err != nil {
		return err
	}

	before, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	ctx = logg.WithFields(ctx, map[string]any{"dir": dir, "dialect": dialect, "from_version": before})
	logg.Info(ctx, "migrations.auto_run")

	if err := Run(ctx, sqlDB, dialect, dir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	after, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "to_version", after), "migrations.applied")
	return nil
}
