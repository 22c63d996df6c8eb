// Package migrations wraps bun/migrate for the migrate binaries and holds
// schema helpers used by individual migrations.
package migrations

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

const usageText = `Usage:
  migrate [-config path] <command>

Commands:
  init     create the migration bookkeeping tables
  up       apply every pending migration
  down     roll back the last migration group
  status   list applied and pending migrations

Example:
  migrate -config config.yaml up

Flags:
`

// ErrNoCommand is returned when no migration command was given.
var ErrNoCommand = errors.New("no migration command")

// Usage prints command usage and exits
func Usage() {
	fmt.Fprint(os.Stderr, usageText)
	flag.PrintDefaults()
	os.Exit(2)
}

// Exitf prints the message with usage and exits
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	Usage()
}

type command func(ctx context.Context, m *migrate.Migrator) error

var commands = map[string]command{
	"init": func(ctx context.Context, m *migrate.Migrator) error {
		if err := m.Init(ctx); err != nil {
			return err
		}
		log.Println("migration tables ready")
		return nil
	},
	"up": locked(func(ctx context.Context, m *migrate.Migrator) error {
		group, err := m.Migrate(ctx)
		if err != nil {
			return err
		}
		if group.IsZero() {
			log.Println("database is up to date")
			return nil
		}
		log.Printf("migrated to %s", group)
		return nil
	}),
	"down": locked(func(ctx context.Context, m *migrate.Migrator) error {
		group, err := m.Rollback(ctx)
		if err != nil {
			return err
		}
		if group.IsZero() {
			log.Println("nothing to roll back")
			return nil
		}
		log.Printf("rolled back %s", group)
		return nil
	}),
	"status": func(ctx context.Context, m *migrate.Migrator) error {
		ms, err := m.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		log.Printf("applied: %s", ms.Applied())
		log.Printf("pending: %s", ms.Unapplied())
		log.Printf("last group: %s", ms.LastGroup())
		return nil
	},
}

// locked runs cmd while holding the migration table lock.
func locked(cmd command) command {
	return func(ctx context.Context, m *migrate.Migrator) error {
		if err := m.Lock(ctx); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		defer func() {
			if err := m.Unlock(ctx); err != nil {
				log.Printf("failed to release migration lock: %v", err)
			}
		}()
		return cmd(ctx, m)
	}
}

// RunMigrations runs the command named by args[0]
func RunMigrations(ctx context.Context, migrator *migrate.Migrator, args ...string) error {
	if len(args) == 0 {
		return ErrNoCommand
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return cmd(ctx, migrator)
}

// CreateSchema creates the tables of models if they do not exist
func CreateSchema(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		log.Printf("creating table for %T", model)
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropTables drops the tables of models with cascade
func DropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		log.Printf("dropping table for %T", model)
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", model, err)
		}
	}
	return nil
}

// CreateModelIndexes creates one idx_<table>_<column> index per column.
func CreateModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	return eachIndex(db, model, columns, func(name, column string) error {
		_, err := db.NewCreateIndex().Model(model).Index(name).Column(column).IfNotExists().Exec(ctx)
		return err
	})
}

// DropModelIndexes drops indexes created by CreateModelIndexes.
func DropModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	return eachIndex(db, model, columns, func(name, _ string) error {
		_, err := db.NewDropIndex().Model(model).Index(name).IfExists().Exec(ctx)
		return err
	})
}

func eachIndex(db bun.IDB, model any, columns []string, fn func(name, column string) error) error {
	for _, column := range columns {
		name, err := modelIndexName(db, model, column)
		if err != nil {
			return err
		}
		if err := fn(name, column); err != nil {
			return fmt.Errorf("index %s: %w", name, err)
		}
	}
	return nil
}

func modelIndexName(db bun.IDB, model any, column string) (string, error) {
	if model == nil {
		return "", fmt.Errorf("model cannot be nil")
	}
	table := db.NewCreateIndex().Model(model).GetTableName()
	if table == "" {
		return "", fmt.Errorf("failed to resolve table name for model %T", model)
	}
	table = strings.NewReplacer(`"`, "", ".", "_").Replace(table)
	return "idx_" + table + "_" + column, nil
}
