// Package playback presents a mood: it starts the matching track and
// updates every display with the title, mood label and a quote.
package playback

import (
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/moodify/internal/catalog"
	"github.com/jmylchreest/moodify/internal/mood"
)

// Initial display text before any mood has been presented.
const (
	IdleTitle = "—"
	IdleLabel = "—"
	IdleQuote = "Let’s find the right vibe for you."
)

// Player starts audio playback of a file.
type Player interface {
	Play(path string) error
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(path string) error

// Play calls f(path).
func (f PlayerFunc) Play(path string) error {
	return f(path)
}

// QuoteSource returns a quote for a mood, never failing.
type QuoteSource interface {
	Get(m mood.Mood) string
}

// NowPlaying is what the displays show after a mood is presented.
type NowPlaying struct {
	ID        string
	Mood      mood.Mood
	Track     catalog.Track
	Quote     string
	StartedAt time.Time
	PlayErr   error // playback start failure, informational only
}

// Title returns the track title display field.
func (n NowPlaying) Title() string {
	if n.Mood == "" {
		return IdleTitle
	}
	return n.Track.Title
}

// Label returns the "for mood" display field.
func (n NowPlaying) Label() string {
	if n.Mood == "" {
		return IdleLabel
	}
	return "for mood: " + string(n.Mood)
}

// Indicator returns the persistent mood indicator text.
func (n NowPlaying) Indicator() string {
	if n.Mood == "" {
		return "Mood: —"
	}
	return "Mood: " + string(n.Mood)
}

// Idle returns the display state before anything was presented.
func Idle() NowPlaying {
	return NowPlaying{Quote: IdleQuote}
}

// Display receives presentation updates.
type Display interface {
	ShowNowPlaying(n NowPlaying)
}

// Presenter selects content for a mood and drives the player and displays.
type Presenter struct {
	logger  *slog.Logger
	catalog *catalog.Catalog
	quotes  QuoteSource
	player  Player
	display Display
	now     func() time.Time
}

// NewPresenter creates a presenter. A nil player presents without audio.
func NewPresenter(c *catalog.Catalog, q QuoteSource, p Player, d Display, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	if d == nil {
		d = Displays(nil)
	}
	return &Presenter{
		logger:  logger,
		catalog: c,
		quotes:  q,
		player:  p,
		display: d,
		now:     time.Now,
	}
}

// Present plays a track for m and updates the displays. Playback start
// failures are logged and otherwise ignored; the text fields update regardless.
func (p *Presenter) Present(m mood.Mood) NowPlaying {
	track := p.catalog.Pick(m)

	n := NowPlaying{
		ID:        newID(),
		Mood:      m,
		Track:     track,
		Quote:     p.quotes.Get(m),
		StartedAt: p.now(),
	}

	if p.player != nil {
		if err := p.player.Play(track.Source); err != nil {
			n.PlayErr = err
			p.logger.Debug("playback did not start", "mood", m, "track", track.Title, "error", err)
		}
	}

	p.logger.Info("presenting mood", "id", n.ID, "mood", m, "track", track.Title)
	p.display.ShowNowPlaying(n)
	return n
}

func newID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}

// Displays fans an update out to several displays.
type Displays []Display

// ShowNowPlaying forwards n to every display.
func (ds Displays) ShowNowPlaying(n NowPlaying) {
	for _, d := range ds {
		if d != nil {
			d.ShowNowPlaying(n)
		}
	}
}
