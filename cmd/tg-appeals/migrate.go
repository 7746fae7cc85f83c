package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"tg-appeals/internal/models"
	"tg-appeals/internal/storage"
)

func migrateCmd() *cobra.Command {
	var (
		action string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create, inspect or reset the appeals table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			db, err := storage.Open(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer storage.Close(db)

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch action {
			case "migrate":
				if err := migrateDatabase(ctx, out, db); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(out, "Migration completed successfully")
			case "reset":
				if !yes && !confirm(cmd.InOrStdin(), out) {
					return fmt.Errorf("operation cancelled by user")
				}
				if err := resetDatabase(ctx, out, db); err != nil {
					return fmt.Errorf("reset failed: %w", err)
				}
				fmt.Fprintln(out, "Database reset completed successfully")
			case "status":
				return checkStatus(ctx, out, db)
			default:
				return fmt.Errorf("unknown action: %s", action)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "migrate", "action to perform (migrate, reset, status)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation on reset")
	return cmd
}

// migrateDatabase creates the appeals table and its indexes
func migrateDatabase(ctx context.Context, out io.Writer, db *gorm.DB) error {
	fmt.Fprintln(out, "Migrating database...")
	return storage.NewAppealRepository(db).MigrateTable(ctx)
}

func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "WARNING: This will delete all appeals! Are you sure? (y/N): ")
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.TrimSpace(answer)
	return answer == "y" || answer == "Y"
}

// resetDatabase drops the appeals table and recreates it
func resetDatabase(ctx context.Context, out io.Writer, db *gorm.DB) error {
	fmt.Fprintln(out, "Resetting database...")

	if err := db.WithContext(ctx).Migrator().DropTable(&models.Appeal{}); err != nil {
		return fmt.Errorf("failed to drop appeals table: %w", err)
	}

	return migrateDatabase(ctx, out, db)
}

// checkStatus prints table presence and per-status counts
func checkStatus(ctx context.Context, out io.Writer, db *gorm.DB) error {
	fmt.Fprintln(out, "Checking database status...")

	migrator := db.WithContext(ctx).Migrator()
	if !migrator.HasTable(&models.Appeal{}) {
		fmt.Fprintln(out, "❌ appeals table does not exist")
		return nil
	}
	fmt.Fprintln(out, "✅ appeals table exists")

	if migrator.HasIndex(&models.Appeal{}, "idx_appeals_one_pending") {
		fmt.Fprintln(out, "✅ one-pending-per-user index exists")
	} else {
		fmt.Fprintln(out, "⚠️ one-pending-per-user index is missing")
	}

	stats, err := storage.NewAppealRepository(db).Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to count appeals: %w", err)
	}

	fmt.Fprintf(out, "   - Contains %d appeals\n", stats.Total)
	for _, status := range models.AllStatuses {
		fmt.Fprintf(out, "   - %s %s: %d\n", status.Emoji(), status, stats.Count(status))
	}
	return nil
}
