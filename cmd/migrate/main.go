// cmd/migrate applies the SQL migrations under db/migrations.
package main

import (
	"errors"
	"flag"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/sketchlobby/internal/config"
)

func main() {
	source := flag.String("source", "file://db/migrations", "migration source URL")
	down := flag.Bool("down", false, "roll back instead of applying")
	steps := flag.Int("steps", 0, "apply (or roll back) only this many migrations")
	flag.Parse()

	cfg := config.Load()
	logger := logrus.New()
	logger.SetLevel(cfg.Level())

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New(*source, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("migration setup failed: %v", err)
	}
	defer m.Close()

	switch {
	case *steps > 0 && *down:
		err = m.Steps(-*steps)
	case *steps > 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatalf("database migration failed: %v", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		logger.Fatalf("read migration version: %v", verr)
	}
	logger.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("database migrations applied")
}
