package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdulachik/sonetobot/internal/config"
	"github.com/abdulachik/sonetobot/internal/db"
)

var migrateStatusOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the poem database schema",
	Long: `Apply pending schema migrations to DATABASE_PATH and report what was done.
With --status, only list applied and pending migrations.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "list migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	if migrateStatusOnly {
		status, err := store.MigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("read migration status: %w", err)
		}
		fmt.Fprintf(out, "%s: %d applied, %d pending\n", cfg.DatabasePath, len(status.Applied), len(status.Pending))
		printVersions(out, "applied", status.Applied)
		printVersions(out, "pending", status.Pending)
		printVersions(out, "unknown", status.Unknown)
		return nil
	}

	status, err := store.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if len(status.Pending) == 0 {
		fmt.Fprintf(out, "%s: schema up to date (%d migrations)\n", cfg.DatabasePath, len(status.Applied))
		return nil
	}
	fmt.Fprintf(out, "%s: applied %d, %d already present\n", cfg.DatabasePath, len(status.Pending), len(status.Applied))
	printVersions(out, "applied now", status.Pending)
	return nil
}

func printVersions(w io.Writer, label string, versions []string) {
	if len(versions) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(versions, ", "))
}
