package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/moodify/internal/catalog"
	"github.com/jmylchreest/moodify/internal/mood"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100*time.Millisecond, cfg.Detection.Interval.Duration())
	assert.Equal(t, 0.6, cfg.Detection.Threshold)
	assert.Equal(t, CameraFFmpeg, cfg.Camera.Kind)
	assert.Equal(t, 10, cfg.Camera.FPS)
	assert.Equal(t, DetectorHTTP, cfg.Detector.Kind)
	assert.Equal(t, DefaultDetectorURL, cfg.Detector.URL)
	assert.True(t, cfg.Audio.Enabled)
	assert.Equal(t, 80, cfg.Audio.Volume)
	assert.True(t, cfg.Quotes.Watch)
	assert.True(t, cfg.Notify.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Detection, cfg.Detection)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	path := writeConfig(t, `
[detection]
interval = "250ms"
threshold = 0.7
auto_start = true

[camera]
kind = "synthetic"
fps = 5

[detector]
kind = "feed"
feed = "/tmp/faces.jsonl"
feed_loop = true
timeout = "2s"

[audio]
enabled = false
volume = 40
songs_dir = "/srv/songs"

[quotes]
source = "https://example.com/quotes.yaml"
watch = false

[notify]
enabled = false

[[tracks.happy]]
title = "Sunrise"
src = "sunrise.mp3"

[[tracks.happy]]
title = "Good Times"
src = "/abs/good.ogg"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Detection.Interval.Duration())
	assert.Equal(t, 0.7, cfg.Detection.Threshold)
	assert.True(t, cfg.Detection.AutoStart)
	assert.Equal(t, CameraSynthetic, cfg.Camera.Kind)
	assert.Equal(t, 5, cfg.Camera.FPS)
	assert.Equal(t, DetectorFeed, cfg.Detector.Kind)
	assert.Equal(t, "/tmp/faces.jsonl", cfg.Detector.Feed)
	assert.True(t, cfg.Detector.FeedLoop)
	assert.Equal(t, 2*time.Second, cfg.Detector.Timeout.Duration())
	assert.False(t, cfg.Audio.Enabled)
	assert.Equal(t, 40, cfg.Audio.Volume)
	assert.Equal(t, "https://example.com/quotes.yaml", cfg.QuotesSource())
	assert.False(t, cfg.Quotes.Watch)
	assert.False(t, cfg.Notify.Enabled)
	require.Len(t, cfg.Tracks["happy"], 2)

	cat, err := cfg.Catalog()
	require.NoError(t, err)
	happy := cat.Playlist(mood.Happy)
	require.Len(t, happy, 2)
	assert.Equal(t, "Sunrise", happy[0].Title)
	assert.Equal(t, filepath.Join("/srv/songs", "sunrise.mp3"), happy[0].Source)
	assert.Equal(t, "/abs/good.ogg", happy[1].Source)
	assert.Equal(t, filepath.Join("/srv/songs", "sad.wav"), cat.Playlist(mood.Sad)[0].Source)
}

func TestLoadConfig_PartialConfig(t *testing.T) {
	path := writeConfig(t, `
[audio]
volume = 10
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Audio.Volume)
	assert.True(t, cfg.Audio.Enabled)
	assert.Equal(t, DefaultInterval, cfg.Detection.Interval.Duration())
	assert.Equal(t, DetectorHTTP, cfg.Detector.Kind)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `this is not valid toml [`))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[detection]\ninterval = \"soon\"\n"))
	assert.ErrorContains(t, err, "invalid duration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"zero interval", func(c *Config) { c.Detection.Interval = 0 }, "interval"},
		{"threshold too high", func(c *Config) { c.Detection.Threshold = 1 }, "threshold"},
		{"bad camera", func(c *Config) { c.Camera.Kind = "webcam" }, "camera kind"},
		{"bad fps", func(c *Config) { c.Camera.FPS = 0 }, "fps"},
		{"bad detector", func(c *Config) { c.Detector.Kind = "magic" }, "detector kind"},
		{"bad url", func(c *Config) { c.Detector.URL = "localhost:8765" }, "http(s)"},
		{"feed without path", func(c *Config) { c.Detector.Kind = DetectorFeed }, "feed path"},
		{"volume", func(c *Config) { c.Audio.Volume = 101 }, "volume"},
		{"unknown mood", func(c *Config) {
			c.Tracks["elated"] = nil
		}, "unknown mood"},
		{"track without src", func(c *Config) {
			c.Tracks["sad"] = []catalog.Track{{Title: "x"}}
		}, "missing src"},
		{"empty neutral playlist", func(c *Config) { c.Tracks["neutral"] = nil }, "empty playlist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Save(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.toml")

	cfg := DefaultConfig()
	cfg.Audio.Volume = 55
	cfg.Detection.Interval = Duration(300 * time.Millisecond)

	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 55, loaded.Audio.Volume)
	assert.Equal(t, 300*time.Millisecond, loaded.Detection.Interval.Duration())
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/moodify/config.toml", ConfigPath())
}

func TestDataPaths(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	assert.Equal(t, "/custom/data/moodify", DataPath())
	assert.Equal(t, "/custom/data/moodify/models", ModelsPath())
	assert.Equal(t, "/custom/data/moodify/songs", SongsPath())
	assert.Equal(t, "/custom/data/moodify/quotes.json", QuotesPath())

	cfg := DefaultConfig()
	assert.Equal(t, ModelsPath(), cfg.ModelsDir())
	assert.Equal(t, SongsPath(), cfg.SongsDir())
	assert.Equal(t, QuotesPath(), cfg.QuotesSource())

	cfg.Detector.ModelsDir = "/opt/models"
	assert.Equal(t, "/opt/models", cfg.ModelsDir())
}

func TestEnsureDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	require.NoError(t, EnsureDataDir())

	info, err := os.Stat(filepath.Join(dir, "moodify"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
