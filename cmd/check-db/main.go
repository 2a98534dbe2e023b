// Package main is a diagnostic tool for database connectivity. It connects
// with the server's configuration, prints the schema version and a summary of
// organization data, and exits non-zero on any failure so it can gate
// deployment steps.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/civicdata/portal-api/internal/config"
	"github.com/civicdata/portal-api/internal/db"
)

var summaryQueries = []struct {
	label string
	query string
}{
	{"users", `SELECT COUNT(*) FROM users`},
	{"organizations", `SELECT COUNT(*) FROM organizations WHERE deleted IS NULL`},
	{"deleted organizations", `SELECT COUNT(*) FROM organizations WHERE deleted IS NOT NULL`},
	{"members", `SELECT COUNT(*) FROM organization_members`},
	{"pending membership requests", `SELECT COUNT(*) FROM membership_requests WHERE status = 'pending'`},
	{"active follows", `SELECT COUNT(*) FROM follows WHERE until IS NULL`},
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	fmt.Printf("=== SCHEMA ===\nversion %d (dirty: %v)\n", version, dirty)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("\n=== DATA ===")
	for _, q := range summaryQueries {
		var n int
		if err := database.QueryRowContext(ctx, q.query).Scan(&n); err != nil {
			log.Fatalf("Query for %s failed: %v", q.label, err)
		}
		fmt.Printf("%-28s %d\n", q.label+":", n)
	}

	if dirty {
		os.Exit(2)
	}
}
