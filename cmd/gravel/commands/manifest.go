package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/gravel/cmd/gravel/output"
	"github.com/marshallshelly/gravel/internal/catalog"
	"github.com/marshallshelly/gravel/internal/ingest"
)

// manifestCmd lists processed files
var manifestCmd = &cobra.Command{
	Use:   "manifest <entity>",
	Short: "List processed files for an entity",
	Long: `List the manifest of processed files for an entity, most recent
first.

Examples:
  gravel manifest order
  gravel manifest customer --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runManifest(args[0])
	},
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(entityName string) error {
	ctx := context.Background()

	entity, err := catalog.Lookup(entityName)
	if err != nil {
		return err
	}

	db, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	manifests, err := ingest.ListManifest(ctx, db, entity)
	if err != nil {
		return fmt.Errorf("failed to list manifest: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(manifests, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal manifest: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(manifests) == 0 {
		output.Info("No files processed for %s", entityName)
		return nil
	}

	output.Section(fmt.Sprintf("Processed Files: %s", entityName))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tDIGEST\tSIZE\tPROCESSED AT")
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			m.FileName, m.Digest, m.FileSize,
			time.Unix(m.ProcessedAt, 0).Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
