package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/credentials-api/internal/config"
	"github.com/redmonkez12/credentials-api/internal/database"
	"github.com/redmonkez12/credentials-api/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE:  runMigrate,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		RunE:  runMigrateStatus,
	}

	migrateCmd.AddCommand(statusCmd)
	return migrateCmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	sqlDB, err := database.Open(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sqlDB.Close()

	if err := database.Migrate(cmd.Context(), sqlDB, "postgres"); err != nil {
		return err
	}

	version, err := database.MigrationVersion(cmd.Context(), sqlDB, "postgres")
	if err != nil {
		return err
	}

	logger.Info("migrations applied", "version", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sqlDB, err := database.Open(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sqlDB.Close()

	version, err := database.MigrationVersion(cmd.Context(), sqlDB, "postgres")
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return nil
}
