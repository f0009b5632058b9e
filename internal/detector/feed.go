package detector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jmylchreest/moodify/internal/capture"
	"github.com/jmylchreest/moodify/internal/mood"
)

// FeedDetector replays recorded detections, one JSON line per frame. A
// line is either an array of faces or an object with a "faces" array;
// blank lines mean no face was seen.
type FeedDetector struct {
	mu     sync.Mutex
	open   func() (io.ReadCloser, error)
	frames [][]mood.Face
	next   int
	loaded bool

	// Loop restarts the feed after the last line instead of failing.
	Loop bool
}

// NewFeedDetector creates a feed reading path ("-" for stdin).
func NewFeedDetector(path string) *FeedDetector {
	return &FeedDetector{
		open: func() (io.ReadCloser, error) {
			if path == "-" {
				return io.NopCloser(os.Stdin), nil
			}
			return os.Open(path)
		},
	}
}

// NewFeedDetectorWithReader creates a feed over r.
func NewFeedDetectorWithReader(r io.Reader) *FeedDetector {
	return &FeedDetector{
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

// Name returns the adapter identifier.
func (d *FeedDetector) Name() string {
	return "feed"
}

// LoadModels reads and parses the whole feed.
func (d *FeedDetector) LoadModels(ctx context.Context) error {
	rc, err := d.open()
	if err != nil {
		return &DetectError{Detector: d.Name(), Op: "load models", Err: err}
	}
	defer func() { _ = rc.Close() }()

	frames, err := ParseFeed(rc)
	if err != nil {
		return &DetectError{Detector: d.Name(), Op: "load models", Err: err}
	}

	d.mu.Lock()
	d.frames = frames
	d.next = 0
	d.loaded = true
	d.mu.Unlock()
	return nil
}

// DetectFrame returns the next recorded detection, ignoring the frame.
func (d *FeedDetector) DetectFrame(ctx context.Context, _ capture.Frame) ([]mood.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, &DetectError{Detector: d.Name(), Op: "detect", Err: ErrModelsNotLoaded}
	}
	if d.next >= len(d.frames) {
		if !d.Loop || len(d.frames) == 0 {
			return nil, &DetectError{Detector: d.Name(), Op: "detect", Err: ErrFeedExhausted}
		}
		d.next = 0
	}

	faces := d.frames[d.next]
	d.next++
	return faces, nil
}

// Remaining returns how many recorded frames are left before the feed ends.
func (d *FeedDetector) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames) - d.next
}

type feedLine struct {
	Faces []mood.Face `json:"faces"`
}

// ParseFeed parses a JSON Lines detection feed.
func ParseFeed(r io.Reader) ([][]mood.Face, error) {
	scanner := bufio.NewScanner(r)
	const maxSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxSize)

	var frames [][]mood.Face
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())

		switch {
		case len(line) == 0:
			frames = append(frames, nil)
		case line[0] == '[':
			var faces []mood.Face
			if err := json.Unmarshal(line, &faces); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			frames = append(frames, faces)
		default:
			var fl feedLine
			if err := json.Unmarshal(line, &fl); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			frames = append(frames, fl.Faces)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}
