package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/moodify/internal/mood"
)

var quoteOpts struct {
	source string
}

var quoteCmd = &cobra.Command{
	Use:   "quote <mood>",
	Short: "Print a random quote for a mood",
	Long: `Print a random quote for a mood from the configured quotes source.

When the source cannot be loaded or has no quote for the mood, the
fallback quote is printed.

Examples:
  moodify quote sad
  moodify quote happy --source https://example.com/quotes.json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteOpts.source, "source", "",
		"Quotes file or URL (overrides the config)")
}

func runQuote(cmd *cobra.Command, args []string) error {
	m, err := mood.Parse(args[0])
	if err != nil {
		return err
	}

	c := getConfig()
	if quoteOpts.source != "" {
		c.Quotes.Source = quoteOpts.source
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	store := loadQuotes(ctx, c)
	fmt.Println(store.Get(m))
	return nil
}
