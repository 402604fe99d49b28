package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tkeffer/weewx-xaggs/internal/store"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create an empty archive and daily summary schema for development",
	Long: `migrate creates the archive table and the daily summary tables for the
standard observation types. It is meant for development and test databases;
a live WeeWX archive already has its schema.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the current schema version without applying")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := openStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	if dryRun {
		slog.Info("dry run mode, showing migration status")
		current, err := store.MigrationVersion(s.DB(), s.Dialect())
		if err != nil {
			current = 0
		}
		slog.Info("migration status", "current_version", current, "driver", cfg.Storage.Driver)
		return nil
	}

	if err := store.Migrate(s.DB(), s.Dialect()); err != nil {
		return err
	}
	if err := s.Refresh(ctx); err != nil {
		// The bootstrap schema always uses the default prefix.
		slog.Warn("schema created but archive table not readable", "table_prefix", cfg.Storage.TablePrefix, "error", err)
	}

	slog.Info("migrations complete")
	return nil
}
