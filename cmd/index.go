package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ringan-ai/ringan/internal/app"
)

var indexConcurrency int

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the vector index from the knowledge base",
	Long:  "Reads the knowledge base catalog, embeds one passage per problem,\nand upserts the result into the vector index. Safe to re-run.",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&indexConcurrency, "concurrency", 4, "number of concurrent embedding calls")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	ix, err := a.NewIndexer(indexConcurrency)
	if err != nil {
		return fmt.Errorf("creating indexer: %w", err)
	}

	start := time.Now()
	n, err := ix.Run(ctx)
	if err != nil {
		return fmt.Errorf("indexing knowledge base: %w", err)
	}

	fmt.Printf("Indexed %d passages in %s\n", n, time.Since(start).Round(time.Millisecond))
	return nil
}
