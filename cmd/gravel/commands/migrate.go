package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/gravel/cmd/gravel/output"
	"github.com/marshallshelly/gravel/internal/migrate"
)

var (
	// Migrate flags
	dryRun bool
	steps  int
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the landing-zone schema",
	Long: `Bootstrap the raw and reporting schemas and apply migrations.

The bootstrap (schemas, landing tables, manifest tables) is built in and
always runs first; additional .sql migration files from --migrations-dir
are applied after it in version order.

Subcommands:
  up      - Apply the bootstrap and pending migrations
  down    - Rollback migrations
  status  - Show migration status
  verify  - Check the live schema against the expected layout`,
}

// migrateUpCmd applies the bootstrap and pending migrations
var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply the bootstrap and pending migrations",
	Long: `Apply the schema bootstrap and any pending migration files.

Already-applied migrations are skipped, so re-running is a no-op.

Examples:
  gravel migrate up                    # Apply everything pending
  gravel migrate up --dry-run          # Preview without applying`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateUp()
	},
}

// migrateDownCmd rolls back migrations
var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback migrations",
	Long: `Rollback applied migrations, most recent first. Rolling back the
bootstrap drops the raw and reporting schemas with everything in them.

Examples:
  gravel migrate down --steps 1        # Rollback last migration
  gravel migrate down --steps 99       # Tear everything down`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateDown()
	},
}

// migrateStatusCmd shows migration status
var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateStatus()
	},
}

// migrateVerifyCmd checks the live schema
var migrateVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the live schema against the expected layout",
	Long: `Introspect the database and report landing or manifest tables that
are missing or missing columns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateVerify()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd, migrateVerifyCmd)

	migrateUpCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview migrations without applying")
	migrateDownCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to rollback")
}

func runMigrateUp() error {
	ctx := context.Background()

	db, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	executor := migrate.NewExecutor(db.Pool())

	if err := executor.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	if !dryRun {
		if err := executor.Lock(ctx); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		defer func() { _ = executor.Unlock(ctx) }()
	}

	migrations, err := migrate.Load(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	pending, err := pendingMigrations(ctx, executor, migrations)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		output.Info("No pending migrations")
		return nil
	}

	if dryRun {
		output.Section("DRY RUN - Preview")
		output.Info("The following migrations would be applied:")
		for _, mig := range pending {
			fmt.Printf("  %s %s - %s\n", output.StatusIcon("pending"), mig.Version, mig.Name)
		}
		return nil
	}

	output.Section("Applying Migrations")
	for _, mig := range pending {
		output.Info("Applying %s - %s...", mig.Version, mig.Name)
		if err := executor.Apply(ctx, mig, false); err != nil {
			output.Error("Failed to apply migration %s: %v", mig.Version, err)
			return fmt.Errorf("failed to apply migration %s: %w", mig.Version, err)
		}
		output.Success("Applied %s", mig.Version)
	}

	fmt.Println()
	output.Success("Successfully applied %d migration(s)", len(pending))
	return nil
}

func pendingMigrations(ctx context.Context, executor *migrate.Executor, migrations []migrate.Migration) ([]migrate.Migration, error) {
	applied, err := executor.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedMap := make(map[string]bool)
	for _, m := range applied {
		appliedMap[m.Version] = true
	}

	var pending []migrate.Migration
	for _, mig := range migrations {
		if !appliedMap[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

func runMigrateDown() error {
	ctx := context.Background()

	db, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	executor := migrate.NewExecutor(db.Pool())

	if err := executor.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	if err := executor.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() { _ = executor.Unlock(ctx) }()

	migrations, err := migrate.Load(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	migrationMap := make(map[string]migrate.Migration)
	for _, m := range migrations {
		migrationMap[m.Version] = m
	}

	applied, err := executor.GetAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	if len(applied) == 0 {
		output.Info("Nothing to rollback")
		return nil
	}

	rolledBack := 0
	for i := len(applied) - 1; i >= 0 && rolledBack < steps; i-- {
		record := applied[i]
		mig, exists := migrationMap[record.Version]
		if !exists {
			return fmt.Errorf("migration file not found for version %s", record.Version)
		}

		output.Info("Rolling back %s - %s...", mig.Version, mig.Name)
		if err := executor.Rollback(ctx, mig, false); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", mig.Version, err)
		}
		output.Success("Rolled back %s", mig.Version)
		rolledBack++
	}

	fmt.Println()
	output.Success("Rolled back %d migration(s)", rolledBack)
	return nil
}

func runMigrateStatus() error {
	ctx := context.Background()

	db, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	executor := migrate.NewExecutor(db.Pool())

	if err := executor.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	migrations, err := migrate.Load(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	records, err := executor.GetStatus(ctx, migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	output.Section("Migration Status")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, r := range records {
		appliedAt := "-"
		if r.AppliedAt != nil {
			appliedAt = r.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n",
			output.StatusIcon(string(r.Status)), r.Version, r.Name, r.Status, appliedAt)
	}
	return w.Flush()
}

func runMigrateVerify() error {
	ctx := context.Background()

	db, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	problems, err := migrate.Verify(ctx, db.Pool())
	if err != nil {
		return fmt.Errorf("failed to verify schema: %w", err)
	}

	if len(problems) == 0 {
		output.Success("Schema matches the expected layout")
		return nil
	}

	output.Section("Schema Problems")
	for _, p := range problems {
		output.Error("%s", p)
	}
	return fmt.Errorf("schema verification found %d problem(s)", len(problems))
}
