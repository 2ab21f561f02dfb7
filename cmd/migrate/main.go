// Command migrate applies or rolls back the prices table schema via
// golang-migrate, reading its migration files from migrations/.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/tm1ddleton/analytics/internal/platform/config"
	"github.com/tm1ddleton/analytics/internal/platform/logging"
)

func main() {
	direction := flag.String("direction", "up", "up or down")
	flag.Parse()

	logger := logging.Default()
	dsn := config.GetEnv("DATABASE_URL", "postgres://localhost:5432/analytics?sslmode=disable")
	sourceURL := config.GetEnv("MIGRATIONS_PATH", "file://migrations")

	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		logger.Fatal(context.Background(), "failed to initialize migrator", err)
	}

	switch *direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		fmt.Fprintf(os.Stderr, "unknown direction %q, want up or down\n", *direction)
		os.Exit(1)
	}

	if err != nil && err != migrate.ErrNoChange {
		logger.Fatal(context.Background(), "migration failed", err)
	}
}
