package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/invoice-chaser/internal/cli"
	"github.com/Veraticus/invoice-chaser/internal/config"
	"github.com/Veraticus/invoice-chaser/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the ledger schema to the latest version.

Every other command migrates on startup; this one is for checking the
schema version or preparing a database ahead of time.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show the current schema version without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	dbPath := config.DatabasePath()
	ctx := cmd.Context()

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if !status {
		slog.Info("Running database migrations", "database", dbPath)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if status {
		cmd.Println(cli.FormatInfo(fmt.Sprintf("Database %s is at schema version %d", dbPath, version)))
		return nil
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf("Database migrations complete (version %d)", version)))
	return nil
}
