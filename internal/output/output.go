// Package output provides output formatters for catalog listings.
package output

import (
	"io"
	"os"

	"github.com/jmylchreest/moodify/internal/catalog"
	"github.com/jmylchreest/moodify/internal/mood"
)

// Entry is one track of the catalog as listed on the command line.
type Entry struct {
	Index  int    `json:"index" yaml:"index"` // 1-based position in the mood's playlist
	Mood   string `json:"mood" yaml:"mood"`
	Title  string `json:"title" yaml:"title"`
	Source string `json:"src" yaml:"src"`
	Exists bool   `json:"exists" yaml:"exists"` // source file is present on disk
}

// Entries flattens a catalog in mood enumeration order. Moods without their
// own playlist are listed with the neutral fallback.
func Entries(c *catalog.Catalog) []Entry {
	var out []Entry
	for _, m := range mood.All {
		for i, t := range c.Playlist(m) {
			_, err := os.Stat(t.Source)
			out = append(out, Entry{
				Index:  i + 1,
				Mood:   string(m),
				Title:  t.Title,
				Source: t.Source,
				Exists: err == nil,
			})
		}
	}
	return out
}

// Formatter formats catalog entries for output.
type Formatter interface {
	// Format writes formatted entries to the writer.
	Format(w io.Writer, entries []Entry) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatDmenu FormatType = "dmenu"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatPlain FormatType = "plain"
)

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter()
	case FormatYAML:
		return NewYAMLFormatter()
	case FormatDmenu:
		return NewDmenuFormatter(opts)
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template   string // Custom template for dmenu/plain format
	Separator  string // Field separator for dmenu format
	ShowSource bool   // Include the track source path
}

// DefaultFormatterOptions returns sensible defaults for plain output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		Separator:  " | ",
		ShowSource: true,
	}
}
