package playback

import (
	"fmt"
	"io"
	"sync"
)

// TextDisplay writes each update as plain text, used in headless mode.
type TextDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextDisplay creates a display writing to w.
func NewTextDisplay(w io.Writer) *TextDisplay {
	return &TextDisplay{w: w}
}

// ShowNowPlaying prints the track, mood label and quote.
func (d *TextDisplay) ShowNowPlaying(n NowPlaying) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "%s | %s (%s)\n  %q\n", n.Indicator(), n.Title(), n.Label(), n.Quote)
}

// ShowStatus prints a status line.
func (d *TextDisplay) ShowStatus(status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "status: %s\n", status)
}
