package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/moodify/internal/audio"
	"github.com/jmylchreest/moodify/internal/mood"
	"github.com/jmylchreest/moodify/internal/playback"
)

var playOpts struct {
	volume int
}

var playCmd = &cobra.Command{
	Use:   "play <mood>",
	Short: "Play a track for a mood without the camera",
	Long: `Present a mood manually: pick a track from its playlist, print the
track and a quote, and play the track until it ends or you interrupt.

Examples:
  moodify play happy
  moodify play sad --volume 50`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVar(&playOpts.volume, "volume", -1,
		"Playback volume 0-100 (default from config)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	m, err := mood.Parse(args[0])
	if err != nil {
		return err
	}

	c := getConfig()
	cat, err := resolveCatalog(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	player := audio.NewPlayer(logger)
	defer player.Close()
	player.SetEnabled(true)
	volume := c.Audio.Volume
	if playOpts.volume >= 0 {
		volume = min(playOpts.volume, 100)
	}
	player.SetVolume(float64(volume) / 100)

	// Present without a player, then block on playback here.
	text := playback.NewTextDisplay(os.Stdout)
	n := playback.NewPresenter(cat, loadQuotes(ctx, c), nil, text, logger).Present(m)

	if err := player.PlayUntilDone(ctx, n.Track.Source); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to play %s: %w", n.Track.Source, err)
	}
	return nil
}
