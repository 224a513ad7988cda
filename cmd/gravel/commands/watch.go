package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marshallshelly/gravel/cmd/gravel/output"
	"github.com/marshallshelly/gravel/cmd/gravel/tui"
	"github.com/marshallshelly/gravel/internal/ingest"
)

var interactive bool

// watchCmd runs the ingestion daemons
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the ingestion daemons",
	Long: `Watch the configured entity directories and ingest new CSV files as
they arrive. Files already present when the daemon starts are ingested
first.

Examples:
  gravel watch --config gravel.yaml
  gravel watch --interactive           # Live dashboard`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run with the live dashboard")
}

func runWatch() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var logOutputs []string
	if interactive {
		logOutputs = []string{"gravel.log"}
	}
	logger, err := newLogger(logOutputs...)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	db, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if interactive {
		return tui.RunDashboard(ctx, db, cfg, logger)
	}

	service := ingest.NewService(db, cfg, logger)
	logger.Info("starting gravel", zap.String("run_id", service.RunID()))
	output.Info("Watching %d entit(ies); Ctrl-C to stop", len(cfg.Entities))

	return service.Run(ctx)
}
