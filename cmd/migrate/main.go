package main

// Run database migrations:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/storage/db"
	"jobboard-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultCLIOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	version, err := db.RunMigrations(ctx, sqlDB)
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	telemetry.Info("migrate.complete", map[string]any{"schema_version": version})
}
