// Package catalog holds the static mood-to-track playlists.
package catalog

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/moodify/internal/mood"
)

// Track is a playable audio file with a display title.
type Track struct {
	Title  string `toml:"title" json:"title" yaml:"title"`
	Source string `toml:"src" json:"src" yaml:"src"`
}

// Catalog maps moods to playlists. Moods without an entry fall back to neutral.
type Catalog struct {
	playlists map[mood.Mood][]Track
	intn      func(n int) int
}

// New creates a catalog from the given playlists. The map is copied.
func New(playlists map[mood.Mood][]Track) *Catalog {
	c := &Catalog{
		playlists: make(map[mood.Mood][]Track, len(playlists)),
		intn:      rand.IntN,
	}
	for m, tracks := range playlists {
		c.playlists[m] = append([]Track(nil), tracks...)
	}
	return c
}

// Default returns the built-in demo playlists. Sources are relative to the
// songs directory; call Resolve before handing tracks to the player.
func Default() *Catalog {
	return New(DefaultPlaylists())
}

// DefaultPlaylists returns a fresh copy of the built-in playlists.
func DefaultPlaylists() map[mood.Mood][]Track {
	return map[mood.Mood][]Track{
		mood.Happy:     {{Title: "Bright Day", Source: "happy.wav"}},
		mood.Sad:       {{Title: "New Dawn", Source: "sad.wav"}},
		mood.Angry:     {{Title: "Calm Seas", Source: "angry.wav"}},
		mood.Neutral:   {{Title: "Lo-Fi Loop", Source: "neutral.wav"}},
		mood.Surprised: {{Title: "Spark", Source: "neutral.wav"}},
		mood.Fearful:   {{Title: "Steady", Source: "neutral.wav"}},
		mood.Disgusted: {{Title: "Reset", Source: "neutral.wav"}},
	}
}

// WithOverrides returns a new catalog where every mood present in
// overrides replaces the playlist of c.
func (c *Catalog) WithOverrides(overrides map[mood.Mood][]Track) *Catalog {
	merged := make(map[mood.Mood][]Track, len(c.playlists)+len(overrides))
	for m, tracks := range c.playlists {
		merged[m] = tracks
	}
	for m, tracks := range overrides {
		merged[m] = tracks
	}
	out := New(merged)
	out.intn = c.intn
	return out
}

// Resolve returns a copy of the catalog with relative sources joined to dir.
// Absolute paths and ~ paths are left to the player.
func (c *Catalog) Resolve(dir string) *Catalog {
	resolved := make(map[mood.Mood][]Track, len(c.playlists))
	for m, tracks := range c.playlists {
		out := make([]Track, len(tracks))
		for i, t := range tracks {
			if dir != "" && !filepath.IsAbs(t.Source) && !strings.HasPrefix(t.Source, "~") {
				t.Source = filepath.Join(dir, t.Source)
			}
			out[i] = t
		}
		resolved[m] = out
	}
	r := New(resolved)
	r.intn = c.intn
	return r
}

// Playlist returns the tracks that Pick would choose from for m.
func (c *Catalog) Playlist(m mood.Mood) []Track {
	if tracks, ok := c.playlists[m]; ok {
		return tracks
	}
	return c.playlists[mood.Neutral]
}

// Pick chooses a track for m uniformly at random, using the neutral
// playlist when m has none. A catalog that resolves m to an empty
// playlist is misconfigured and Pick panics.
func (c *Catalog) Pick(m mood.Mood) Track {
	tracks := c.Playlist(m)
	if len(tracks) == 0 {
		panic(fmt.Sprintf("catalog: no tracks for mood %q and no neutral fallback", m))
	}
	return tracks[c.intn(len(tracks))]
}

// Validate reports moods that would resolve to an empty playlist or
// tracks missing a source.
func (c *Catalog) Validate() error {
	for _, m := range mood.All {
		tracks := c.Playlist(m)
		if len(tracks) == 0 {
			return fmt.Errorf("mood %q resolves to an empty playlist", m)
		}
		for i, t := range tracks {
			if t.Source == "" {
				return fmt.Errorf("track %d for mood %q has no src", i, m)
			}
		}
	}
	return nil
}

// Moods returns the moods with an explicit playlist, in enumeration order.
func (c *Catalog) Moods() []mood.Mood {
	var out []mood.Mood
	for _, m := range mood.All {
		if _, ok := c.playlists[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot returns a copy of all playlists keyed by mood name, suitable for
// serialization.
func (c *Catalog) Snapshot() map[string][]Track {
	out := make(map[string][]Track, len(c.playlists))
	for m, tracks := range c.playlists {
		out[string(m)] = append([]Track(nil), tracks...)
	}
	return out
}
