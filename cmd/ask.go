package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ringan-ai/ringan/internal/app"
)

var askShowSources bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question against the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowSources, "sources", false, "print the passages the answer was grounded on")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	question := strings.Join(args, " ")

	exchange, err := a.Assistant.ProcessUserMessage(ctx, "", question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(exchange.AnswerText)

	if askShowSources {
		fmt.Println()
		if len(exchange.UsedSources) == 0 {
			fmt.Println("Sources: none (general knowledge answer)")
			return nil
		}
		fmt.Println("Sources:")
		for _, src := range exchange.UsedSources {
			fmt.Printf("  %s (similarity %.3f)\n", src.Passage.ID, src.Similarity)
		}
	}

	return nil
}
