package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrDisabled is returned by Play when audio output is turned off.
var ErrDisabled = errors.New("audio disabled")

// Player plays one track at a time. Starting a track replaces whatever
// was playing.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Volume control (0.0 to 1.0)
	volume  float64
	enabled bool

	// Whether speaker has been initialized
	initialized bool
	sampleRate  beep.SampleRate

	// Currently playing track
	ctrl    *beep.Ctrl
	current string
	done    chan struct{}
	endOnce *sync.Once

	// requests counts Play and PlayAsync calls; an older decode is dropped
	requests uint64

	cache   map[string]*cachedTrack
	cacheMu sync.RWMutex

	// speaker hooks, replaced in tests
	initSpeaker func(beep.SampleRate, int) error
	play        func(beep.Streamer)
	clear       func()
}

// cachedTrack holds a decoded track ready for playback.
type cachedTrack struct {
	buffer  *beep.Buffer
	modTime time.Time
}

// NewPlayer creates a new audio player.
func NewPlayer(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	close(done)

	return &Player{
		logger:      logger,
		volume:      1.0,
		enabled:     true,
		sampleRate:  beep.SampleRate(44100),
		done:        done,
		endOnce:     &sync.Once{},
		cache:       make(map[string]*cachedTrack),
		initSpeaker: speaker.Init,
		play:        func(s beep.Streamer) { speaker.Play(s) },
		clear:       speaker.Clear,
	}
}

// SetEnabled turns audio output on or off. Disabling stops playback.
func (p *Player) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()

	if !enabled {
		p.Stop()
	}
}

// SetVolume sets the playback volume (0.0 to 1.0). It applies to the next track.
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = math.Max(0, math.Min(1, volume))
	p.logger.Debug("volume set", "volume", p.volume)
}

// GetVolume returns the current volume.
func (p *Player) GetVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Current returns the path of the track started last, empty when idle.
func (p *Player) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return ""
	default:
		return p.current
	}
}

// Done returns a channel closed when the current track ends or is replaced.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Play starts the track at path, replacing the current one.
// Supports WAV, OGG, and MP3 formats.
func (p *Player) Play(path string) error {
	req, err := p.request(path)
	if err != nil {
		return err
	}

	path = expandPath(path)
	buffer, err := p.load(path)
	if err != nil {
		p.logger.Warn("failed to load track", "path", path, "error", err)
		return err
	}
	return p.start(req, path, buffer)
}

// PlayAsync starts the track at path without waiting for it to be decoded.
// A decode still running when another track is requested is discarded.
// Load and speaker failures are logged.
func (p *Player) PlayAsync(path string) error {
	req, err := p.request(path)
	if err != nil {
		return err
	}

	go func() {
		path := expandPath(path)
		buffer, err := p.load(path)
		if err != nil {
			p.logger.Warn("failed to load track", "path", path, "error", err)
			return
		}
		if err := p.start(req, path, buffer); err != nil {
			p.logger.Warn("failed to start track", "path", path, "error", err)
		}
	}()
	return nil
}

func (p *Player) request(path string) (uint64, error) {
	if path == "" {
		return 0, errors.New("no track source")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return 0, ErrDisabled
	}
	p.requests++
	return p.requests, nil
}

// start plays a decoded track unless a newer request has been made.
func (p *Player) start(req uint64, path string, buffer *beep.Buffer) error {
	if err := p.ensureInitialized(buffer.Format().SampleRate); err != nil {
		return err
	}

	p.mu.Lock()
	if p.requests != req {
		p.mu.Unlock()
		p.logger.Debug("dropping superseded track", "path", path)
		return nil
	}
	p.mu.Unlock()

	p.Stop()

	p.mu.Lock()
	done := make(chan struct{})
	once := &sync.Once{}
	end := func() { once.Do(func() { close(done) }) }

	var streamer beep.Streamer = buffer.Streamer(0, buffer.Len())
	if buffer.Format().SampleRate != p.sampleRate {
		streamer = beep.Resample(4, buffer.Format().SampleRate, p.sampleRate, streamer)
	}
	if p.volume < 1.0 {
		streamer = &effects.Volume{
			Streamer: streamer,
			Base:     2,
			Volume:   volumeToExponent(p.volume),
			Silent:   p.volume == 0,
		}
	}

	ctrl := &beep.Ctrl{Streamer: beep.Seq(streamer, beep.Callback(end))}
	p.ctrl = ctrl
	p.current = path
	p.done = done
	p.endOnce = once
	p.mu.Unlock()

	p.play(ctrl)
	p.logger.Debug("playing track", "path", path)
	return nil
}

// PlayUntilDone plays path and blocks until it finishes or ctx is done.
func (p *Player) PlayUntilDone(ctx context.Context, path string) error {
	if err := p.Play(path); err != nil {
		return err
	}

	select {
	case <-p.Done():
		return nil
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	}
}

// Stop halts the current track.
func (p *Player) Stop() {
	p.mu.Lock()
	initialized := p.initialized
	done, once := p.done, p.endOnce
	p.ctrl = nil
	p.mu.Unlock()

	if initialized {
		p.clear()
	}
	once.Do(func() { close(done) })
}

// TogglePause pauses or resumes the current track. Returns the new paused state.
func (p *Player) TogglePause() bool {
	p.mu.Lock()
	ctrl := p.ctrl
	initialized := p.initialized
	p.mu.Unlock()

	if ctrl == nil {
		return false
	}
	if initialized {
		speaker.Lock()
		defer speaker.Unlock()
	}
	ctrl.Paused = !ctrl.Paused
	return ctrl.Paused
}

// load returns the decoded track, re-decoding when the file changed since caching.
func (p *Player) load(path string) (*beep.Buffer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track: %w", err)
	}

	p.cacheMu.RLock()
	cached, ok := p.cache[path]
	p.cacheMu.RUnlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.buffer, nil
	}

	buffer, err := decode(path)
	if err != nil {
		return nil, err
	}

	p.cacheMu.Lock()
	p.cache[path] = &cachedTrack{buffer: buffer, modTime: info.ModTime()}
	p.cacheMu.Unlock()

	return buffer, nil
}

// Preload decodes the tracks into the cache so the first play starts promptly.
func (p *Player) Preload(paths ...string) {
	for _, path := range paths {
		if _, err := p.load(expandPath(path)); err != nil {
			p.logger.Warn("failed to preload track", "path", path, "error", err)
		}
	}
}

// decode reads a whole audio file into a buffer.
func decode(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track: %w", err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		_ = f.Close()
		return nil, fmt.Errorf("unsupported audio format: %s", ext)
	}

	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to decode track: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	return buffer, nil
}

// ensureInitialized initializes the speaker at the first track's sample rate.
// Later tracks are resampled to it.
func (p *Player) ensureInitialized(sampleRate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	bufferSize := sampleRate.N(100 * time.Millisecond)
	if err := p.initSpeaker(sampleRate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	p.sampleRate = sampleRate
	p.initialized = true
	p.logger.Debug("speaker initialized", "sample_rate", sampleRate)
	return nil
}

// ClearCache drops every decoded track.
func (p *Player) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cache = make(map[string]*cachedTrack)
}

// Close stops playback and releases the speaker.
func (p *Player) Close() {
	p.Stop()

	p.mu.Lock()
	if p.initialized {
		speaker.Close()
		p.initialized = false
	}
	p.mu.Unlock()

	p.ClearCache()
	p.logger.Debug("audio player closed")
}

// volumeToExponent converts a linear volume (0-1] to a base-2 exponent
// for effects.Volume: 0.5 is -1, 0.25 is -2.
func volumeToExponent(volume float64) float64 {
	if volume <= 0 {
		return -10
	}
	return math.Log2(volume)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
