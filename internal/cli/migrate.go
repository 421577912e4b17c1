// Package cli provides migration CLI commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/weftlabs/weft/internal/store"
)

var migrateSteps int

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateVersionCmd)

	migrateDownCmd.Flags().IntVarP(&migrateSteps, "steps", "n", 1, "number of migrations to roll back")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long: `Manage database schema migrations.

Commands:
  up       Apply pending migrations
  down     Roll back migrations
  status   Show migration status
  version  Show current schema version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := openDatabaseNoMigrate()
		if err != nil {
			return err
		}
		defer database.Close()

		applied, err := database.MigrateUp(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		if applied == 0 {
			cmd.Println("No pending migrations")
		} else {
			cmd.Printf("Applied %d migration(s)\n", applied)
		}

		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Long:  `Roll back the last N migrations (default: 1).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := openDatabaseNoMigrate()
		if err != nil {
			return err
		}
		defer database.Close()

		rolledBack, err := database.MigrateDown(ctx, migrateSteps)
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}

		if rolledBack == 0 {
			cmd.Println("No migrations to roll back")
		} else {
			cmd.Printf("Rolled back %d migration(s)\n", rolledBack)
		}

		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := openDatabaseNoMigrate()
		if err != nil {
			return err
		}
		defer database.Close()

		status, err := database.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, status)
		}

		rows := make([][]string, 0, len(status))
		for _, s := range status {
			statusStr := "pending"
			appliedAt := "-"
			if s.Applied {
				statusStr = "applied"
				appliedAt = s.AppliedAt
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", s.Version),
				s.Description,
				statusStr,
				appliedAt,
			})
		}

		return writeTable(os.Stdout, []string{"VERSION", "DESCRIPTION", "STATUS", "APPLIED AT"}, rows)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		database, err := openDatabaseNoMigrate()
		if err != nil {
			return err
		}
		defer database.Close()

		version, err := database.SchemaVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to get schema version: %w", err)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]int{"version": version})
		}

		cmd.Printf("Schema version: %d\n", version)
		return nil
	},
}

// openDatabase opens the database using the current configuration and
// applies any pending migrations.
func openDatabase() (*store.DB, error) {
	return openDatabaseWithMigration(true)
}

func openDatabaseNoMigrate() (*store.DB, error) {
	return openDatabaseWithMigration(false)
}

func openDatabaseWithMigration(autoMigrate bool) (*store.DB, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	if err := appConfig.EnsureDirectories(); err != nil {
		return nil, err
	}

	database, err := store.Open(store.Config{
		Path:          appConfig.DatabasePath(),
		MaxOpenConns:  appConfig.Database.MaxConnections,
		BusyTimeoutMs: appConfig.Database.BusyTimeoutMs,
	})
	if err != nil {
		return nil, err
	}

	if autoMigrate {
		if err := database.Migrate(context.Background()); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return database, nil
}
