// Package capture owns the camera stream and exposes the newest frame.
package capture

import (
	"context"
	"errors"
	"time"
)

// Frame is a single video frame. Data holds JPEG bytes; synthetic frames
// carry no data.
type Frame struct {
	Seq      uint64
	Captured time.Time
	Width    int
	Height   int
	Data     []byte
}

// Stream is an open camera. Frames is closed when the stream ends.
type Stream interface {
	Frames() <-chan Frame
	Close() error
}

// Camera opens user-facing video streams. Implementations never request audio.
type Camera interface {
	Name() string
	Open(ctx context.Context) (Stream, error)
}

// Errors returned by Controller.Latest.
var (
	ErrNoCamera = errors.New("camera not started")
	ErrNoFrame  = errors.New("no frame captured yet")
)

// CameraError wraps a failure to open a camera.
type CameraError struct {
	Camera string
	Err    error
}

func (e *CameraError) Error() string {
	return "camera error: " + e.Err.Error()
}

func (e *CameraError) Unwrap() error {
	return e.Err
}
