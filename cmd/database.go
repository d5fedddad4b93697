package cmd

import (
	"log"

	"github.com/0xsend/distributor/pkg/postgres/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Apply database migrations and exit",
	Run: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd)

		c, err := setupCore()
		if err != nil {
			log.Fatalf("Failed to setup: %v", err)
		}

		migrator := migrations.NewMigrator(c.Db, c.Grm, c.Logger, c.Config)
		if err := migrator.MigrateAll(); err != nil {
			c.Logger.Sugar().Fatalw("Failed to run migrations", zap.Error(err))
		}
		c.Logger.Sugar().Infow("Migrations complete")
	},
}
