package capture

import (
	"context"
	"log/slog"
	"sync"
)

// Status messages reported by the controller.
const (
	StatusCameraOn      = "camera on"
	StatusCameraStopped = "camera stopped"
)

// Controller acquires and releases a single camera stream.
type Controller struct {
	startMu sync.Mutex // serializes Start so a second call never reopens the camera

	mu       sync.RWMutex
	logger   *slog.Logger
	camera   Camera
	stream   Stream
	latest   Frame
	hasFrame bool
	seq      uint64
	status   func(string)
}

// NewController creates a controller for camera.
func NewController(camera Camera, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger: logger,
		camera: camera,
	}
}

// SetStatusFunc sets the callback receiving user-visible status text.
func (c *Controller) SetStatusFunc(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = fn
}

func (c *Controller) report(text string) {
	c.mu.RLock()
	fn := c.status
	c.mu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

// Active reports whether a stream is open.
func (c *Controller) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stream != nil
}

// Start opens the camera. It is a no-op while a stream is active.
// On failure the status reports the error and the controller stays without a camera.
func (c *Controller) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.Active() {
		return nil
	}

	stream, err := c.camera.Open(ctx)
	if err != nil {
		camErr := &CameraError{Camera: c.camera.Name(), Err: err}
		c.logger.Error("failed to open camera", "camera", c.camera.Name(), "error", err)
		c.report(camErr.Error())
		return camErr
	}

	c.mu.Lock()
	c.stream = stream
	c.hasFrame = false
	c.mu.Unlock()

	go c.pump(stream)

	c.logger.Info("camera started", "camera", c.camera.Name())
	c.report(StatusCameraOn)
	return nil
}

// pump copies frames from the stream into the latest slot until the
// stream ends or is replaced.
func (c *Controller) pump(stream Stream) {
	for f := range stream.Frames() {
		c.mu.Lock()
		if c.stream != stream {
			c.mu.Unlock()
			return
		}
		c.seq++
		f.Seq = c.seq
		c.latest = f
		c.hasFrame = true
		c.mu.Unlock()
	}

	c.mu.Lock()
	ended := c.stream == stream
	if ended {
		c.stream = nil
		c.hasFrame = false
	}
	c.mu.Unlock()

	if ended {
		c.logger.Warn("camera stream ended", "camera", c.camera.Name())
		c.report(StatusCameraStopped)
	}
}

// Stop releases the active stream. It is a no-op without one.
func (c *Controller) Stop() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.hasFrame = false
	c.latest = Frame{}
	c.mu.Unlock()

	if stream == nil {
		return
	}

	if err := stream.Close(); err != nil {
		c.logger.Warn("error closing camera stream", "error", err)
	}
	c.logger.Info("camera stopped", "camera", c.camera.Name())
	c.report(StatusCameraStopped)
}

// Latest returns the newest frame of the active stream.
func (c *Controller) Latest() (Frame, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stream == nil {
		return Frame{}, ErrNoCamera
	}
	if !c.hasFrame {
		return Frame{}, ErrNoFrame
	}
	return c.latest, nil
}
