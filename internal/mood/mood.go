// Package mood defines the mood vocabulary shared by detection, playlists and quotes.
package mood

import (
	"errors"
	"fmt"
	"strings"
)

// Mood is one of the fixed expression categories reported by the detector.
type Mood string

// Known moods, in enumeration order.
const (
	Happy     Mood = "happy"
	Sad       Mood = "sad"
	Angry     Mood = "angry"
	Neutral   Mood = "neutral"
	Surprised Mood = "surprised"
	Fearful   Mood = "fearful"
	Disgusted Mood = "disgusted"
)

// ChangeThreshold is the confidence a new mood must strictly exceed before it is committed.
const ChangeThreshold = 0.6

// All lists every mood in enumeration order. Scans that need a
// deterministic order (tie-breaking) iterate this slice, never a map.
var All = []Mood{Happy, Sad, Angry, Neutral, Surprised, Fearful, Disgusted}

// ErrUnknownMood is returned when parsing a name outside the enumeration.
var ErrUnknownMood = errors.New("unknown mood")

// Parse converts a name to a Mood. Matching is case-insensitive.
func Parse(name string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(name)))
	if !m.Valid() {
		return "", fmt.Errorf("%w %q, must be one of: %s", ErrUnknownMood, name, Names())
	}
	return m, nil
}

// Valid reports whether m is part of the enumeration.
func (m Mood) Valid() bool {
	return m.Index() >= 0
}

// Index returns the position of m in All, or -1.
func (m Mood) Index() int {
	for i, known := range All {
		if m == known {
			return i
		}
	}
	return -1
}

func (m Mood) String() string {
	return string(m)
}

// Names returns the mood names joined for help and error text.
func Names() string {
	names := make([]string, len(All))
	for i, m := range All {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// Next returns the mood after m in enumeration order, wrapping around.
func (m Mood) Next() Mood {
	i := m.Index()
	return All[(i+1)%len(All)]
}

// Prev returns the mood before m in enumeration order, wrapping around.
func (m Mood) Prev() Mood {
	i := m.Index()
	if i <= 0 {
		return All[len(All)-1]
	}
	return All[i-1]
}
