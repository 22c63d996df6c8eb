// Package rewarddb holds all the migrations for the rewards database
package rewarddb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the rewards database
var Migrations = migrate.NewMigrations()
