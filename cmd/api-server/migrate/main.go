package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/qtx-rewards/pkg/config"
	"github.com/chainsafe/qtx-rewards/pkg/migrations/rewarddb"
	"github.com/chainsafe/qtx-rewards/pkg/pgutil"
	mghelper "github.com/chainsafe/qtx-rewards/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("migrations need database.driver postgres, got %q", cfg.Database.Driver)
	}

	// Connect to database
	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for rewards database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, rewarddb.Migrations)

	err = mghelper.RunMigrations(context.Background(), migrator, flag.Args()...)
	switch {
	case errors.Is(err, mghelper.ErrNoCommand):
		mghelper.Exitf("no command provided")
	case err != nil:
		log.Fatalf("migration failed: %s", err.Error())
	}
}
