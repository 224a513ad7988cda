package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/marshallshelly/gravel/internal/config"
	"github.com/marshallshelly/gravel/internal/database"
)

var (
	// Global flags
	dbURL         string
	configPath    string
	migrationsDir string
	verbose       bool
	jsonOutput    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gravel",
	Short: "Gravel - CSV landing-zone ingestion for PostgreSQL",
	Long: `Gravel ingests raw CSV drops into a PostgreSQL landing zone.

It watches per-entity directories for new files, deduplicates them by
content digest against a manifest, bulk-copies rows into staging tables,
and merges them into the raw landing tables with an upsert that never
lets an old file overwrite newer data.

Commands:
  migrate   - Bootstrap the raw/reporting schemas and run migrations
  watch     - Run the ingestion daemons
  load      - One-shot ingest of files or directories
  manifest  - List processed files for an entity`,
	Version: "1.2.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL (overrides config file)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migrations-dir", "./db/migrations", "Directory for additional migration files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// loadConfig loads the config file (or defaults) with env overrides.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// connect opens the database pool, preferring --db over the config
// file.
func connect(ctx context.Context) (*database.DB, error) {
	if dbURL != "" {
		return database.ConnectWithURL(ctx, dbURL)
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return database.Connect(ctx, cfg.DatabaseConfig())
}

// newLogger builds the process logger. Verbose mode drops the level to
// debug. Output paths default to stderr; the interactive dashboard logs
// to a file instead so the UI stays clean.
func newLogger(outputs ...string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(outputs) > 0 {
		config.OutputPaths = outputs
		config.ErrorOutputPaths = outputs
	}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}
