package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/moodify/internal/capture"
	"github.com/jmylchreest/moodify/internal/detector"
	"github.com/jmylchreest/moodify/internal/mood"
)

// Status messages reported by the loop.
const (
	StatusDetecting     = "detecting..."
	StatusPausedPrefix  = "detection paused: "
	StatusDetectionStop = "detection stopped"
)

// FrameSource provides the newest camera frame.
type FrameSource interface {
	Latest() (capture.Frame, error)
}

// LoopState is the state of the decision loop.
type LoopState int

const (
	Idle LoopState = iota
	Running
)

func (s LoopState) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Stats counts loop activity since construction.
type Stats struct {
	Ticks    int
	Frames   int // frames sent to the detector
	Failures int
	Commits  int
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	Detector detector.Detector
	Frames   FrameSource
	Overlay  detector.Overlay
	Decider  *Decider
	Interval time.Duration

	// OnCommit is called for every committed mood while the run is still
	// current. It must not call Stop synchronously.
	OnCommit func(m mood.Mood)
	// OnStatus receives user-visible status changes.
	OnStatus func(status string)

	Logger *slog.Logger
}

// Loop is the mood decision loop. While running it processes one frame
// per tick; the next tick is scheduled only after the previous one,
// including its inference call, has finished.
type Loop struct {
	mu sync.Mutex
	// outMu orders overlay drawing and commits against Stop's overlay clear.
	outMu    sync.Mutex
	logger   *slog.Logger
	detector detector.Detector
	frames   FrameSource
	overlay  detector.Overlay
	decider  *Decider
	interval time.Duration
	onCommit func(mood.Mood)
	onStatus func(string)
	now      func() time.Time

	state     LoopState
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	lastSeq   uint64
	status    string
	stats     Stats
}

// NewLoop creates an idle loop.
func NewLoop(opts LoopOptions) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	overlay := opts.Overlay
	if overlay == nil {
		overlay = detector.NopOverlay{}
	}
	decider := opts.Decider
	if decider == nil {
		decider = NewDecider(mood.ChangeThreshold)
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	done := make(chan struct{})
	close(done)

	return &Loop{
		logger:   logger,
		detector: opts.Detector,
		frames:   opts.Frames,
		overlay:  overlay,
		decider:  decider,
		interval: interval,
		onCommit: opts.OnCommit,
		onStatus: opts.OnStatus,
		now:      time.Now,
		done:     done,
	}
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stats returns a copy of the activity counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Start moves the loop from idle to running. Frames captured before this
// call are never processed. Starting a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.state == Running {
		l.mu.Unlock()
		return
	}

	l.gen++
	gen := l.gen
	l.state = Running
	l.startedAt = l.now()
	l.status = ""

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	prev := l.done
	done := make(chan struct{})
	l.done = done
	l.mu.Unlock()

	l.logger.Info("detection started")
	l.report(gen, StatusDetecting)

	go l.run(runCtx, gen, prev, done)
}

// Stop moves the loop to idle. The pending tick is cancelled and the
// overlay is cleared before Stop returns; nothing is drawn or committed
// afterwards. An inference call already in flight is left to finish and
// its result is discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state != Running {
		l.mu.Unlock()
		return
	}
	l.state = Idle
	l.gen++
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	cancel()

	// waits out a draw or commit of the old run
	l.outMu.Lock()
	l.overlay.Clear()
	l.outMu.Unlock()

	l.logger.Info("detection stopped")
}

// Wait blocks until the goroutine of the most recent run has exited.
func (l *Loop) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	<-done
}

func (l *Loop) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == Running && l.gen == gen
}

// run drives the ticks of one run. It waits for the previous run's
// goroutine first, so an inference call left in flight by Stop never
// overlaps with the new run's.
func (l *Loop) run(ctx context.Context, gen uint64, prev <-chan struct{}, done chan struct{}) {
	defer close(done)

	select {
	case <-prev:
	case <-ctx.Done():
		<-prev
		return
	}

	// inference calls are not aborted by Stop
	inferCtx := context.WithoutCancel(ctx)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if !l.current(gen) {
			return
		}
		l.tick(inferCtx, gen)
		timer.Reset(l.interval)
	}
}

// tick processes the newest frame once.
func (l *Loop) tick(ctx context.Context, gen uint64) {
	l.mu.Lock()
	l.stats.Ticks++
	startedAt := l.startedAt
	lastSeq := l.lastSeq
	l.mu.Unlock()

	frame, err := l.frames.Latest()
	if err != nil {
		if errors.Is(err, capture.ErrNoFrame) {
			return
		}
		l.fail(gen, err)
		return
	}
	if frame.Captured.Before(startedAt) {
		return
	}
	if frame.Seq != 0 && frame.Seq == lastSeq {
		return
	}

	faces, err := l.detector.DetectFrame(ctx, frame)

	l.mu.Lock()
	if l.state != Running || l.gen != gen {
		l.mu.Unlock()
		l.logger.Debug("discarding detection from stopped run", "seq", frame.Seq)
		return
	}
	l.lastSeq = frame.Seq
	l.stats.Frames++
	l.mu.Unlock()

	if err != nil {
		l.fail(gen, err)
		return
	}

	l.report(gen, StatusDetecting)

	l.outMu.Lock()
	defer l.outMu.Unlock()

	if !l.current(gen) {
		return
	}
	l.overlay.Draw(frame, faces)

	obs, ok := mood.Strongest(faces)
	if !ok {
		return
	}

	l.mu.Lock()
	if l.state != Running || l.gen != gen {
		l.mu.Unlock()
		return
	}
	committed := l.decider.Observe(obs)
	if committed {
		l.stats.Commits++
	}
	l.mu.Unlock()

	if committed {
		l.logger.Info("mood changed", "mood", obs.Mood, "confidence", obs.Confidence)
		if l.onCommit != nil {
			l.onCommit(obs.Mood)
		}
	}
}

func (l *Loop) fail(gen uint64, err error) {
	l.mu.Lock()
	l.stats.Failures++
	l.mu.Unlock()

	l.outMu.Lock()
	if l.current(gen) {
		l.overlay.Clear()
	}
	l.outMu.Unlock()

	l.logger.Debug("detection failed", "error", err)
	l.report(gen, StatusPausedPrefix+pauseReason(err))
}

// report forwards status changes of the current run, suppressing repeats.
func (l *Loop) report(gen uint64, status string) {
	l.mu.Lock()
	if l.gen != gen || l.status == status {
		l.mu.Unlock()
		return
	}
	l.status = status
	fn := l.onStatus
	l.mu.Unlock()

	if fn != nil {
		fn(status)
	}
}

func pauseReason(err error) string {
	switch {
	case errors.Is(err, capture.ErrNoCamera):
		return "camera off"
	case errors.Is(err, detector.ErrModelsNotLoaded):
		return "models missing, run 'moodify models fetch'"
	case errors.Is(err, detector.ErrFeedExhausted):
		return "feed exhausted"
	default:
		return err.Error()
	}
}
