package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/moodify/internal/mood"
	"github.com/jmylchreest/moodify/internal/output"
)

var tracksOpts struct {
	format    string
	template  string
	separator string
	mood      string
	noSource  bool
}

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List the track catalog",
	Long: `List the tracks moodify picks from for each mood.

The catalog is the built-in playlists with any [tracks] overrides from the
config file applied. Moods without a playlist of their own show the
neutral fallback. Relative sources are resolved against the songs
directory and missing files are flagged.

Examples:
  # Grouped plain text
  moodify tracks

  # One line per track for a launcher
  moodify tracks --format dmenu | fuzzel --dmenu

  # Machine readable
  moodify tracks --format json
  moodify tracks --format yaml --mood happy

  # Custom template
  moodify tracks --template '{{.Mood}}: {{.Title}}{{"\n"}}'`,
	RunE: runTracks,
}

func init() {
	rootCmd.AddCommand(tracksCmd)

	tracksCmd.Flags().StringVarP(&tracksOpts.format, "format", "f", "plain",
		"Output format (plain, dmenu, json, yaml)")
	tracksCmd.Flags().StringVar(&tracksOpts.template, "template", "",
		"Custom Go template for plain or dmenu output")
	tracksCmd.Flags().StringVar(&tracksOpts.separator, "separator", " | ",
		"Field separator for dmenu output")
	tracksCmd.Flags().StringVar(&tracksOpts.mood, "mood", "",
		"Only list tracks for this mood")
	tracksCmd.Flags().BoolVar(&tracksOpts.noSource, "no-source", false,
		"Omit track source paths")
}

func runTracks(cmd *cobra.Command, args []string) error {
	cat, err := resolveCatalog(getConfig())
	if err != nil {
		return err
	}

	entries := output.Entries(cat)
	if tracksOpts.mood != "" {
		m, err := mood.Parse(tracksOpts.mood)
		if err != nil {
			return err
		}
		filtered := entries[:0]
		for _, e := range entries {
			if e.Mood == string(m) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	formatter := output.NewFormatter(output.FormatType(strings.ToLower(tracksOpts.format)), output.FormatterOptions{
		Template:   tracksOpts.template,
		Separator:  tracksOpts.separator,
		ShowSource: !tracksOpts.noSource,
	})
	return formatter.Format(os.Stdout, entries)
}
