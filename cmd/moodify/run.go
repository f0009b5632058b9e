package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/moodify/internal/capture"
	"github.com/jmylchreest/moodify/internal/config"
	"github.com/jmylchreest/moodify/internal/detector"
	"github.com/jmylchreest/moodify/internal/playback"
	"github.com/jmylchreest/moodify/internal/session"
	"github.com/jmylchreest/moodify/internal/tui"
)

var runOpts struct {
	headless  bool
	autoStart bool
	camera    string
	device    string
	detector  string
	feed      string
	feedLoop  bool
	noAudio   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a mood detection session",
	Long: `Start a mood detection session.

The camera is sampled every detection interval and each frame is sent to
the face detector. When the strongest expression changes to a new mood
with enough confidence, a track and a quote for that mood are presented.

By default the interactive TUI is shown. With --headless the session
starts immediately and every presentation is printed to stdout until
interrupted.

Examples:
  moodify run --auto-start
  moodify run --headless --camera synthetic --detector feed --feed faces.jsonl
  moodify run --device /dev/video2`,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
	addRunFlags(rootCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&runOpts.headless, "headless", false,
		"Run without the TUI, printing presentations to stdout")
	cmd.Flags().BoolVar(&runOpts.autoStart, "auto-start", false,
		"Start camera and detection on launch")
	cmd.Flags().StringVar(&runOpts.camera, "camera", "",
		"Camera kind (ffmpeg, synthetic)")
	cmd.Flags().StringVar(&runOpts.device, "device", "",
		"Camera device (e.g. /dev/video0)")
	cmd.Flags().StringVar(&runOpts.detector, "detector", "",
		"Detector kind (http, feed)")
	cmd.Flags().StringVar(&runOpts.feed, "feed", "",
		"JSON Lines detection feed for the feed detector (- for stdin)")
	cmd.Flags().BoolVar(&runOpts.feedLoop, "feed-loop", false,
		"Restart the feed after its last line")
	cmd.Flags().BoolVar(&runOpts.noAudio, "no-audio", false,
		"Disable audio playback")
}

// applyRunFlags overlays command line flags on the loaded config.
func applyRunFlags(c *config.Config) error {
	if runOpts.camera != "" {
		c.Camera.Kind = runOpts.camera
	}
	if runOpts.device != "" {
		c.Camera.Device = runOpts.device
	}
	if runOpts.detector != "" {
		c.Detector.Kind = runOpts.detector
	}
	if runOpts.feed != "" {
		c.Detector.Feed = runOpts.feed
		if runOpts.detector == "" {
			c.Detector.Kind = config.DetectorFeed
		}
	}
	if runOpts.feedLoop {
		c.Detector.FeedLoop = true
	}
	if runOpts.noAudio {
		c.Audio.Enabled = false
	}
	if runOpts.autoStart {
		c.Detection.AutoStart = true
	}
	return c.Validate()
}

func runSession(cmd *cobra.Command, args []string) error {
	c := getConfig()
	if err := applyRunFlags(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cat, err := resolveCatalog(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, closeNotifier := newNotifier(c)
	defer closeNotifier()

	store := loadQuotes(ctx, c)
	if w := watchQuotes(ctx, c, store, func(err error) {
		if err != nil {
			logger.Warn("quotes reload failed", "error", err)
		}
		if notifier != nil {
			notifier.NotifyQuotesReloaded(err)
		}
	}); w != nil {
		defer func() { _ = w.Stop() }()
	}

	player := newPlayer(c, cat)
	defer player.Close()

	var (
		displays playback.Displays
		bridge   *tui.Bridge
		text     *playback.TextDisplay
		overlay  detector.Overlay = detector.NopOverlay{}
	)
	if runOpts.headless {
		text = playback.NewTextDisplay(os.Stdout)
		displays = append(displays, text)
	} else {
		bridge = tui.NewBridge()
		displays = append(displays, bridge)
		overlay = bridge
	}
	if notifier != nil {
		displays = append(displays, notifier)
	}

	// decoding runs off the detection tick
	var out playback.Player
	if c.Audio.Enabled {
		out = playback.PlayerFunc(player.PlayAsync)
	}

	ctrl := session.NewController(session.Options{
		Camera:    capture.NewController(newCamera(c), logger),
		Detector:  newDetector(c),
		Overlay:   overlay,
		Presenter: playback.NewPresenter(cat, store, out, displays, logger),
		Interval:  c.Detection.Interval.Duration(),
		Threshold: c.Detection.Threshold,
		Logger:    logger,
	})
	ctrl.SetStatusFunc(func(status string) {
		logger.Debug("session status", "status", status)
		if text != nil {
			text.ShowStatus(status)
		}
		if notifier != nil {
			notifier.NotifyStatus(status)
		}
	})

	if runOpts.headless {
		return runHeadless(ctx, ctrl)
	}

	ctrl.SetChangeFunc(bridge.OnChange)

	var a tui.Audio
	if c.Audio.Enabled {
		a = player
	}
	return tui.Run(tui.RunOptions{
		Context:   ctx,
		Session:   ctrl,
		Audio:     a,
		Bridge:    bridge,
		AutoStart: c.Detection.AutoStart,
	})
}

// headlessSession is the part of the session controller headless mode drives.
type headlessSession interface {
	Start(ctx context.Context) error
	Stop()
	Wait()
}

// runHeadless starts the session and blocks until ctx is cancelled. A
// failed start is not fatal: the status has already been printed and the
// process stays up with detection idle, as the TUI does.
func runHeadless(ctx context.Context, s headlessSession) error {
	defer func() {
		s.Stop()
		s.Wait()
	}()

	if err := s.Start(ctx); err != nil {
		logger.Warn("session started without detection", "error", err)
	}

	<-ctx.Done()
	return nil
}
