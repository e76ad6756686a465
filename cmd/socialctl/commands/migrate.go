package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"socialcore/internal/backend/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the embedded schema migrations to DATABASE_URL.

Examples:
  DATABASE_URL=postgres://localhost/social socialctl migrate`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.HasDatabase() {
		return errors.New("DATABASE_URL is not configured")
	}
	if err := postgres.Migrate(cmd.Context(), cfg.DatabaseURL, logger); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}
