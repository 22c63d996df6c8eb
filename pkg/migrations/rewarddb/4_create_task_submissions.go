package rewarddb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/chainsafe/qtx-rewards/pkg/accountstore"
	mghelper "github.com/chainsafe/qtx-rewards/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating task_submissions table...")
		return mghelper.CreateSchema(ctx, db, &accountstore.TaskSubmissionDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping task_submissions table...")
		return mghelper.DropTables(ctx, db, &accountstore.TaskSubmissionDao{})
	})
}
