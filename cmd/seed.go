package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ringan-ai/ringan/db"
	"github.com/ringan-ai/ringan/internal/database"
	"github.com/ringan-ai/ringan/internal/kb"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the curated knowledge base dataset",
	Long:  "Applies migrations and upserts the built-in problem catalog,\nself-assessment questions, suggestions, and feedback prompts. Safe to re-run.",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// runSeed connects directly rather than going through app.Setup: seeding
// only needs the database, not the AI provider.
func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	if err := kb.Seed(ctx, pool, slog.Default()); err != nil {
		return fmt.Errorf("seeding knowledge base: %w", err)
	}

	fmt.Println("Knowledge base seeded")
	return nil
}
