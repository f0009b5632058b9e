package session

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/moodify/internal/detector"
	"github.com/jmylchreest/moodify/internal/mood"
	"github.com/jmylchreest/moodify/internal/playback"
)

// Status messages reported by the controller.
const (
	StatusLoadingModels = "loading models..."
	StatusModelsLoaded  = "models loaded"
	StatusModelsMissing = "models not found: run 'moodify models fetch'"
	StatusModelsFailed  = "model load failed: "
)

// Camera is the capture side of a session.
type Camera interface {
	FrameSource
	Start(ctx context.Context) error
	Stop()
	Active() bool
	SetStatusFunc(fn func(string))
}

// Presenter presents a committed mood.
type Presenter interface {
	Present(m mood.Mood) playback.NowPlaying
}

// State is a snapshot of the session.
type State struct {
	LastMood     mood.Mood // empty until the first commit or manual play
	MoodSince    time.Time
	Detecting    bool
	CameraActive bool
	ModelsLoaded bool
	Status       string
	NowPlaying   playback.NowPlaying
	Stats        Stats
}

// Options configures a Controller.
type Options struct {
	Camera    Camera
	Detector  detector.Detector
	Overlay   detector.Overlay
	Presenter Presenter
	Interval  time.Duration
	Threshold float64
	Logger    *slog.Logger
}

// Controller owns the session: camera, model loading, the decision loop
// and manual playback all go through it.
type Controller struct {
	mu        sync.Mutex
	logger    *slog.Logger
	camera    Camera
	detector  detector.Detector
	presenter Presenter
	decider   *Decider
	loop      *Loop
	now       func() time.Time

	modelsLoaded bool
	status       string
	nowPlaying   playback.NowPlaying
	moodSince    time.Time

	onStatus func(string)
	onChange func(State)
}

// NewController wires a session controller.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = mood.ChangeThreshold
	}

	c := &Controller{
		logger:     logger,
		camera:     opts.Camera,
		detector:   opts.Detector,
		presenter:  opts.Presenter,
		decider:    NewDecider(threshold),
		now:        time.Now,
		nowPlaying: playback.Idle(),
	}

	c.loop = NewLoop(LoopOptions{
		Detector: opts.Detector,
		Frames:   opts.Camera,
		Overlay:  opts.Overlay,
		Decider:  c.decider,
		Interval: opts.Interval,
		OnCommit: func(m mood.Mood) { c.present(m) },
		OnStatus: c.setStatus,
		Logger:   logger,
	})
	opts.Camera.SetStatusFunc(c.setStatus)

	return c
}

// SetStatusFunc registers a callback for status text changes.
func (c *Controller) SetStatusFunc(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

// SetChangeFunc registers a callback invoked with a fresh snapshot after
// every state change.
func (c *Controller) SetChangeFunc(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	last, _ := c.decider.Last()
	return State{
		LastMood:     last,
		MoodSince:    c.moodSince,
		Detecting:    c.loop.State() == Running,
		CameraActive: c.camera.Active(),
		ModelsLoaded: c.modelsLoaded,
		Status:       c.status,
		NowPlaying:   c.nowPlaying,
		Stats:        c.loop.Stats(),
	}
}

func (c *Controller) setStatus(status string) {
	c.mu.Lock()
	c.status = status
	onStatus := c.onStatus
	c.mu.Unlock()

	if onStatus != nil {
		onStatus(status)
	}
	c.changed()
}

func (c *Controller) changed() {
	c.mu.Lock()
	fn := c.onChange
	var s State
	if fn != nil {
		s = c.snapshotLocked()
	}
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// Start turns the camera on, loads the models and begins detection.
// A camera failure is reported through the status and does not stop
// model loading; a model failure leaves detection idle.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.camera.Start(ctx); err != nil {
		c.logger.Warn("camera unavailable", "error", err)
	}

	if err := c.LoadModels(ctx); err != nil {
		return err
	}

	c.StartDetection(ctx)
	return nil
}

// LoadModels loads the detector models, reporting progress via the status.
func (c *Controller) LoadModels(ctx context.Context) error {
	c.setStatus(StatusLoadingModels)

	if err := c.detector.LoadModels(ctx); err != nil {
		c.mu.Lock()
		c.modelsLoaded = false
		c.mu.Unlock()

		c.logger.Error("failed to load models", "detector", c.detector.Name(), "error", err)
		if errors.Is(err, fs.ErrNotExist) {
			c.setStatus(StatusModelsMissing)
		} else {
			c.setStatus(StatusModelsFailed + err.Error())
		}
		return err
	}

	c.mu.Lock()
	c.modelsLoaded = true
	c.mu.Unlock()

	c.logger.Info("models loaded", "detector", c.detector.Name())
	c.setStatus(StatusModelsLoaded)
	return nil
}

// StartDetection starts the decision loop. It is a no-op when running.
func (c *Controller) StartDetection(ctx context.Context) {
	c.loop.Start(ctx)
	c.changed()
}

// StopDetection stops the decision loop and clears the overlay.
func (c *Controller) StopDetection() {
	if c.loop.State() != Running {
		return
	}
	c.loop.Stop()
	c.setStatus(StatusDetectionStop)
}

// StartCamera turns the camera on without touching detection.
func (c *Controller) StartCamera(ctx context.Context) error {
	err := c.camera.Start(ctx)
	c.changed()
	return err
}

// StopCamera turns the camera off. Detection keeps running and reports
// a paused status until the camera returns.
func (c *Controller) StopCamera() {
	c.camera.Stop()
	c.changed()
}

// Stop stops detection and then the camera.
func (c *Controller) Stop() {
	c.StopDetection()
	c.camera.Stop()
	c.changed()
}

// Wait blocks until the loop goroutine has exited after a Stop.
func (c *Controller) Wait() {
	c.loop.Wait()
}

// PlayMood presents m immediately and records it as the last mood, so
// detection will not re-trigger the same mood.
func (c *Controller) PlayMood(m mood.Mood) playback.NowPlaying {
	c.decider.Force(m)
	return c.present(m)
}

func (c *Controller) present(m mood.Mood) playback.NowPlaying {
	n := c.presenter.Present(m)

	c.mu.Lock()
	c.nowPlaying = n
	c.moodSince = c.now()
	c.mu.Unlock()

	c.changed()
	return n
}
