package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-router/internal/persistence"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the postgres store migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), migrationsPath, logger)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsPath, "path", persistence.DefaultMigrationsDir, "Directory holding the .sql migrations")
	rootCmd.AddCommand(migrateCmd)
}
