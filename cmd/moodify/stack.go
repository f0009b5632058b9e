package main

import (
	"context"
	"fmt"

	"github.com/jmylchreest/moodify/internal/audio"
	"github.com/jmylchreest/moodify/internal/capture"
	"github.com/jmylchreest/moodify/internal/catalog"
	"github.com/jmylchreest/moodify/internal/config"
	"github.com/jmylchreest/moodify/internal/detector"
	"github.com/jmylchreest/moodify/internal/notify"
	"github.com/jmylchreest/moodify/internal/quotes"
)

// newCamera builds the configured capture device.
func newCamera(c *config.Config) capture.Camera {
	if c.Camera.Kind == config.CameraSynthetic {
		return &capture.SyntheticCamera{
			FPS:    c.Camera.FPS,
			Width:  c.Camera.Width,
			Height: c.Camera.Height,
		}
	}
	return &capture.FFmpegCamera{
		Path:         c.Camera.FFmpegPath,
		Device:       c.Camera.Device,
		InputFormat:  c.Camera.InputFormat,
		Width:        c.Camera.Width,
		Height:       c.Camera.Height,
		FPS:          c.Camera.FPS,
		StartTimeout: c.Camera.StartTimeout.Duration(),
	}
}

// newDetector builds the configured inference backend.
func newDetector(c *config.Config) detector.Detector {
	if c.Detector.Kind == config.DetectorFeed {
		feed := detector.NewFeedDetector(c.Detector.Feed)
		feed.Loop = c.Detector.FeedLoop
		return feed
	}

	d := detector.NewHTTPDetector(c.Detector.URL,
		detector.NewModelSet(c.ModelsDir(), logger), c.Detector.Timeout.Duration())
	if c.Detector.InputSize > 0 {
		d.InputSize = c.Detector.InputSize
	}
	if c.Detector.ScoreThreshold > 0 {
		d.ScoreThreshold = c.Detector.ScoreThreshold
	}
	return d
}

// loadQuotes loads the quote store. Failures leave the fallback quote in place.
func loadQuotes(ctx context.Context, c *config.Config) *quotes.Store {
	store := quotes.NewStore(c.QuotesSource(), logger)
	store.Load(ctx)
	return store
}

// watchQuotes reloads a local quotes file on change. It returns nil when
// watching is disabled or impossible.
func watchQuotes(ctx context.Context, c *config.Config, store *quotes.Store, onReload func(error)) *quotes.Watcher {
	if !c.Quotes.Watch || store.IsRemote() {
		return nil
	}

	w, err := quotes.NewWatcher(store)
	if err != nil {
		logger.Warn("failed to create quotes watcher", "error", err)
		return nil
	}
	w.SetReloadCallback(onReload)
	if err := w.Start(ctx); err != nil {
		logger.Warn("failed to watch quotes file", "source", store.Source(), "error", err)
		_ = w.Stop()
		return nil
	}
	return w
}

// newPlayer creates the audio player and warms its cache with the catalog tracks.
func newPlayer(c *config.Config, cat *catalog.Catalog) *audio.Player {
	p := audio.NewPlayer(logger)
	p.SetEnabled(c.Audio.Enabled)
	p.SetVolume(float64(c.Audio.Volume) / 100)

	if c.Audio.Enabled {
		var sources []string
		for _, tracks := range cat.Snapshot() {
			for _, t := range tracks {
				sources = append(sources, t.Source)
			}
		}
		go p.Preload(sources...)
	}
	return p
}

// newNotifier connects to the session bus. It returns nil when
// notifications are disabled or no bus is reachable.
func newNotifier(c *config.Config) (*notify.Notifier, func()) {
	if !c.Notify.Enabled {
		return nil, func() {}
	}

	bus, err := notify.DialSessionBus()
	if err != nil {
		logger.Info("desktop notifications unavailable", "error", err)
		return nil, func() {}
	}

	n := notify.NewNotifier(bus, logger)
	if d := c.Notify.MinInterval.Duration(); d > 0 {
		n.SetMinInterval(d)
	}
	return n, func() {
		n.Close()
		_ = bus.Close()
	}
}

// resolveCatalog builds the effective catalog from the config.
func resolveCatalog(c *config.Config) (*catalog.Catalog, error) {
	cat, err := c.Catalog()
	if err != nil {
		return nil, fmt.Errorf("invalid track catalog: %w", err)
	}
	return cat, nil
}
