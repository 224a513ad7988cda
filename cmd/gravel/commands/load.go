package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/gravel/cmd/gravel/output"
	"github.com/marshallshelly/gravel/internal/ingest"
)

var loadEntity string

// loadCmd ingests files once and exits
var loadCmd = &cobra.Command{
	Use:   "load [files or directories...]",
	Short: "One-shot ingest of files or directories",
	Long: `Ingest the named CSV files (or every *.csv in the named directories)
for one entity, then exit. Files whose digest is already in the manifest
are skipped.

Examples:
  gravel load --entity order drops/orders_2024_06.csv
  gravel load --entity customer ./drops/customers/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad(args)
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVarP(&loadEntity, "entity", "e", "", "Entity to load (order, product, customer)")
	_ = loadCmd.MarkFlagRequired("entity")
}

func runLoad(paths []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	db, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	service := ingest.NewService(db, cfg, logger)
	results, err := service.LoadPaths(ctx, loadEntity, paths)

	if jsonOutput {
		data, jsonErr := json.MarshalIndent(results, "", "  ")
		if jsonErr != nil {
			return fmt.Errorf("failed to marshal results: %w", jsonErr)
		}
		fmt.Println(string(data))
		return err
	}

	for _, r := range results {
		if r.Skipped {
			output.Muted("%s: already processed (digest %s)", r.File, r.Digest)
			continue
		}
		output.Success("%s: %d row(s) copied, %d merged", r.File, r.RowsCopied, r.RowsMerged)
	}
	if err != nil {
		output.Error("%v", err)
		return err
	}

	return nil
}
