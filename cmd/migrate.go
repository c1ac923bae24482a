package cmd

import (
	"fmt"

	"github.com/ferreirogomes/starnotary/logs"
	"github.com/ferreirogomes/starnotary/storage"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		conf := compositor.Conf
		logger := logs.SetupLogger(conf.Log)

		db, err := storage.Open(conf.Database.Driver, conf.Database.DSN, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		direction := migrate.Up
		limit := migrateSteps
		if args[0] == "down" {
			direction = migrate.Down
			if limit == 0 {
				limit = 1
			}
		}

		n, err := db.Migrate(direction, limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d migração(ões) %s\n", n, args[0])
		return nil
	},
}

func init() {
	migrateCmd.Flags().IntVarP(&migrateSteps, "steps", "n", 0, "Number of migrations (0 = all for up, 1 for down)")
	rootCmd.AddCommand(migrateCmd)
}
