package capture

import (
	"context"
	"sync"
	"time"
)

// SyntheticCamera produces blank frames at a fixed rate. It drives the
// decision loop when detections come from a scripted feed instead of a device.
type SyntheticCamera struct {
	FPS    int
	Width  int
	Height int
}

// Name returns the camera identifier.
func (c *SyntheticCamera) Name() string {
	return "synthetic"
}

// Open starts emitting frames until the stream is closed.
func (c *SyntheticCamera) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fps := c.FPS
	if fps <= 0 {
		fps = 10
	}

	s := &syntheticStream{
		frames: make(chan Frame, 1),
		stop:   make(chan struct{}),
	}
	go s.run(time.Second/time.Duration(fps), c.Width, c.Height)
	return s, nil
}

type syntheticStream struct {
	frames chan Frame
	stop   chan struct{}
	once   sync.Once
}

func (s *syntheticStream) run(interval time.Duration, width, height int) {
	defer close(s.frames)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			offer(s.frames, Frame{Captured: now, Width: width, Height: height})
		}
	}
}

func (s *syntheticStream) Frames() <-chan Frame {
	return s.frames
}

func (s *syntheticStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

// offer delivers f without blocking, replacing an unread older frame.
func offer(ch chan Frame, f Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}
