// Package detector adapts external face expression inference to moodify.
//
// Detection itself is never implemented here. Adapters load the two
// pre-trained model sets (a face-region detector and an expression
// classifier) and turn frames into per-face expression scores.
package detector

import (
	"context"
	"errors"

	"github.com/jmylchreest/moodify/internal/capture"
	"github.com/jmylchreest/moodify/internal/mood"
)

// Detector is the capability the decision loop needs from an inference backend.
type Detector interface {
	// Name returns the adapter identifier (e.g., "http", "feed").
	Name() string

	// LoadModels prepares the models. Detection must not start until it succeeds.
	LoadModels(ctx context.Context) error

	// DetectFrame runs one inference. Errors are transient: callers retry
	// on the next frame.
	DetectFrame(ctx context.Context, frame capture.Frame) ([]mood.Face, error)
}

// Overlay renders detections over the live view.
type Overlay interface {
	Draw(frame capture.Frame, faces []mood.Face)
	Clear()
}

// Sentinel errors.
var (
	ErrModelsNotLoaded = errors.New("models not loaded")
	ErrEmptyFrame      = errors.New("frame has no image data")
	ErrFeedExhausted   = errors.New("detection feed exhausted")
)

// DetectError represents a detector failure.
type DetectError struct {
	Detector string
	Op       string
	Err      error
}

func (e *DetectError) Error() string {
	return e.Detector + " " + e.Op + ": " + e.Err.Error()
}

func (e *DetectError) Unwrap() error {
	return e.Err
}

// NopOverlay discards drawing calls.
type NopOverlay struct{}

func (NopOverlay) Draw(capture.Frame, []mood.Face) {}
func (NopOverlay) Clear()                          {}
