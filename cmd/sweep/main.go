package main

// Run one reclamation sweep against the configured stores:
//   go run ./cmd/sweep            # expired records and orphaned files
//   go run ./cmd/sweep -startup   # everything, regardless of age

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"jobboard-backend/internal/bootstrap"
	"jobboard-backend/internal/gc"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/storage/db"
	"jobboard-backend/internal/shared/telemetry"
)

func main() {
	startup := flag.Bool("startup", false, "delete every temp resume and staged file regardless of age")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	dbOpts := db.OptionsFromEnv(db.DefaultCLIOptions())
	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{SkipRouter: true, DBOptions: &dbOpts})
	if err != nil {
		telemetry.Error("sweep.bootstrap_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer app.Close()

	var report gc.Report
	if *startup {
		report, err = app.Collector.StartupSweep(ctx)
	} else {
		report, err = app.Collector.TrySweep(ctx)
	}
	if err != nil {
		telemetry.Error("sweep.failed", map[string]any{"error": err})
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	if report.Failures > 0 {
		os.Exit(2)
	}
}
