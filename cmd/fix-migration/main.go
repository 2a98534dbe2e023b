// Package main is a repair tool for a dirty migration state. golang-migrate
// marks a version dirty when a migration is interrupted, and the server then
// refuses to start. This tool reports the current state and, when dirty,
// forces the recorded version so the next startup can retry.
//
// Usage: fix-migration [version]
// Without a version the current one is kept and only the dirty flag cleared.
package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/civicdata/portal-api/internal/config"
	"github.com/civicdata/portal-api/internal/db"
	"github.com/civicdata/portal-api/internal/telemetry"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fatal("failed to load config", err)
	}
	telemetry.SetupLogger("text", cfg.Logging.Level, cfg.Telemetry.ServiceName)

	database, err := db.Connect(cfg.Database.GetDSN(), 1, 1)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		fatal("failed to check migration state", err)
	}
	slog.Info("current migration state", "version", version, "dirty", dirty)

	target := int(version)
	if len(os.Args) > 1 {
		if target, err = strconv.Atoi(os.Args[1]); err != nil {
			fatal("invalid version argument", err)
		}
	} else if !dirty {
		slog.Info("migration state is already clean")
		return
	}

	if err := db.ForceMigrationVersion(database, target); err != nil {
		fatal("failed to fix migration state", err)
	}

	version, dirty, err = db.GetMigrationVersion(database)
	if err != nil {
		fatal("failed to check final migration state", err)
	}
	slog.Info("final migration state", "version", version, "dirty", dirty)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
