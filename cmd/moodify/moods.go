package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/moodify/internal/mood"
)

var moodsCmd = &cobra.Command{
	Use:   "moods",
	Short: "List the recognised moods",
	Long: `List the moods moodify recognises, in the order used to break ties
between equally confident expressions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, m := range mood.All {
			fmt.Println(m)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(moodsCmd)
}
