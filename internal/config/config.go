// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/moodify/internal/catalog"
	"github.com/jmylchreest/moodify/internal/detector"
	"github.com/jmylchreest/moodify/internal/mood"
)

// Default configuration values.
const (
	DefaultInterval    = 100 * time.Millisecond
	DefaultDetectorURL = "http://127.0.0.1:8765"
	DefaultVolume      = 80
	DefaultFPS         = 10
)

// Camera kinds.
const (
	CameraFFmpeg    = "ffmpeg"
	CameraSynthetic = "synthetic"
)

// Detector kinds.
const (
	DetectorHTTP = "http"
	DetectorFeed = "feed"
)

// Config represents the moodify configuration.
type Config struct {
	Detection DetectionConfig            `toml:"detection"`
	Camera    CameraConfig               `toml:"camera"`
	Detector  DetectorConfig             `toml:"detector"`
	Audio     AudioConfig                `toml:"audio"`
	Quotes    QuotesConfig               `toml:"quotes"`
	Notify    NotifyConfig               `toml:"notify"`
	Tracks    map[string][]catalog.Track `toml:"tracks"` // per-mood playlist overrides
}

// DetectionConfig controls the mood decision loop.
type DetectionConfig struct {
	Interval  Duration `toml:"interval"`   // pause between ticks
	Threshold float64  `toml:"threshold"`  // confidence a new mood must exceed
	AutoStart bool     `toml:"auto_start"` // start camera and detection on launch
}

// CameraConfig selects and tunes the frame source.
type CameraConfig struct {
	Kind         string   `toml:"kind"` // "ffmpeg" or "synthetic"
	Device       string   `toml:"device"`
	InputFormat  string   `toml:"input_format"` // derived from the OS when empty
	FFmpegPath   string   `toml:"ffmpeg_path"`
	Width        int      `toml:"width"`
	Height       int      `toml:"height"`
	FPS          int      `toml:"fps"`
	StartTimeout Duration `toml:"start_timeout"`
}

// DetectorConfig selects the face expression detector.
type DetectorConfig struct {
	Kind           string   `toml:"kind"` // "http" or "feed"
	URL            string   `toml:"url"`
	Timeout        Duration `toml:"timeout"`
	InputSize      int      `toml:"input_size"`
	ScoreThreshold float64  `toml:"score_threshold"`
	ModelsDir      string   `toml:"models_dir"` // defaults to <data>/models
	WeightsURL     string   `toml:"weights_url"`
	Feed           string   `toml:"feed"` // JSON Lines file, "-" for stdin
	FeedLoop       bool     `toml:"feed_loop"`
}

// AudioConfig contains audio settings.
type AudioConfig struct {
	Enabled  bool   `toml:"enabled"`
	Volume   int    `toml:"volume"`    // 0-100
	SongsDir string `toml:"songs_dir"` // relative track sources resolve here
}

// QuotesConfig locates the quotes resource.
type QuotesConfig struct {
	Source string `toml:"source"` // file path or http(s) URL
	Watch  bool   `toml:"watch"`  // reload a local file when it changes
}

// NotifyConfig controls desktop notifications.
type NotifyConfig struct {
	Enabled     bool     `toml:"enabled"`
	MinInterval Duration `toml:"min_interval"` // between repeated problem notifications
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			Interval:  Duration(DefaultInterval),
			Threshold: mood.ChangeThreshold,
			AutoStart: false,
		},
		Camera: CameraConfig{
			Kind:         CameraFFmpeg,
			Device:       defaultDevice(),
			Width:        640,
			Height:       480,
			FPS:          DefaultFPS,
			StartTimeout: Duration(10 * time.Second),
		},
		Detector: DetectorConfig{
			Kind:           DetectorHTTP,
			URL:            DefaultDetectorURL,
			Timeout:        Duration(5 * time.Second),
			InputSize:      224,
			ScoreThreshold: 0.5,
			WeightsURL:     detector.DefaultWeightsURL,
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  DefaultVolume,
		},
		Quotes: QuotesConfig{
			Watch: true,
		},
		Notify: NotifyConfig{
			Enabled:     true,
			MinInterval: Duration(30 * time.Second),
		},
		Tracks: make(map[string][]catalog.Track),
	}
}

func defaultDevice() string {
	switch runtime.GOOS {
	case "darwin":
		return "0"
	case "windows":
		return "video=Integrated Camera"
	default:
		return "/dev/video0"
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "moodify", "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "moodify")
}

// ModelsPath returns the default model artifact directory.
func ModelsPath() string {
	return filepath.Join(DataPath(), "models")
}

// SongsPath returns the default directory for track files.
func SongsPath() string {
	return filepath.Join(DataPath(), "songs")
}

// QuotesPath returns the default quotes file.
func QuotesPath() string {
	return filepath.Join(DataPath(), "quotes.json")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Detection.Interval.Duration() <= 0 {
		return fmt.Errorf("detection interval must be positive, got %s", c.Detection.Interval.Duration())
	}
	if c.Detection.Threshold <= 0 || c.Detection.Threshold >= 1 {
		return fmt.Errorf("detection threshold must be between 0 and 1, got %v", c.Detection.Threshold)
	}

	switch c.Camera.Kind {
	case CameraFFmpeg, CameraSynthetic:
	default:
		return fmt.Errorf("invalid camera kind %q, must be %q or %q", c.Camera.Kind, CameraFFmpeg, CameraSynthetic)
	}
	if c.Camera.FPS < 1 || c.Camera.FPS > 60 {
		return fmt.Errorf("camera fps must be between 1 and 60, got %d", c.Camera.FPS)
	}

	switch c.Detector.Kind {
	case DetectorHTTP:
		if !strings.HasPrefix(c.Detector.URL, "http://") && !strings.HasPrefix(c.Detector.URL, "https://") {
			return fmt.Errorf("detector url must be http(s), got %q", c.Detector.URL)
		}
	case DetectorFeed:
		if c.Detector.Feed == "" {
			return errors.New("detector kind \"feed\" requires a feed path")
		}
	default:
		return fmt.Errorf("invalid detector kind %q, must be %q or %q", c.Detector.Kind, DetectorHTTP, DetectorFeed)
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}

	if _, err := c.Catalog(); err != nil {
		return err
	}
	return nil
}

// TrackOverrides converts the [tracks] table into per-mood playlists.
func (c *Config) TrackOverrides() (map[mood.Mood][]catalog.Track, error) {
	out := make(map[mood.Mood][]catalog.Track, len(c.Tracks))
	for name, tracks := range c.Tracks {
		m, err := mood.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("tracks: %w", err)
		}
		for i, t := range tracks {
			if t.Source == "" {
				return nil, fmt.Errorf("tracks.%s[%d]: missing src", name, i)
			}
		}
		out[m] = tracks
	}
	return out, nil
}

// Catalog builds the effective track catalog: built-in playlists, then
// overrides, with relative sources resolved against the songs directory.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	overrides, err := c.TrackOverrides()
	if err != nil {
		return nil, err
	}
	cat := catalog.Default().WithOverrides(overrides).Resolve(c.SongsDir())
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// ModelsDir returns the configured model directory or the default.
func (c *Config) ModelsDir() string {
	if c.Detector.ModelsDir != "" {
		return expandPath(c.Detector.ModelsDir)
	}
	return ModelsPath()
}

// SongsDir returns the configured songs directory or the default.
func (c *Config) SongsDir() string {
	if c.Audio.SongsDir != "" {
		return expandPath(c.Audio.SongsDir)
	}
	return SongsPath()
}

// QuotesSource returns the configured quotes source or the default file.
func (c *Config) QuotesSource() string {
	if c.Quotes.Source != "" {
		return c.Quotes.Source
	}
	return QuotesPath()
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
