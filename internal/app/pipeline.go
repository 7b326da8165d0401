package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/hub"
	"github.com/ayusman/handorbit/internal/logger"
	"github.com/ayusman/handorbit/internal/metrics"
)

// DefaultInterval is the pause between loop iterations (about 30 fps).
const DefaultInterval = 33 * time.Millisecond

// Errors that end a run.
var (
	ErrFrameUnavailable = errors.New("frame unavailable")
	ErrDetectorFailure  = errors.New("detector failure")
)

// Run end reasons as recorded in the run audit and metrics.
const (
	ReasonStopped          = "stopped"
	ReasonFrameUnavailable = "frame_unavailable"
	ReasonDetectorFailure  = "detector_failure"
	ReasonError            = "error"
)

// Reason maps the error a run ended with to its end reason.
func Reason(err error) string {
	switch {
	case err == nil:
		return ReasonStopped
	case errors.Is(err, ErrFrameUnavailable):
		return ReasonFrameUnavailable
	case errors.Is(err, ErrDetectorFailure):
		return ReasonDetectorFailure
	default:
		return ReasonError
	}
}

// LoopState is the lifecycle state of a Loop.
type LoopState int

const (
	Idle LoopState = iota
	Running
	Stopped
)

func (s LoopState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("LoopState(%d)", int(s))
	}
}

// Display receives annotated frames of a run. Show is only called when
// Wants reports true for that frame. Show must not retain frame after it
// returns. Returning false ends the run.
type Display interface {
	Wants() bool
	Show(frame *gocv.Mat) bool
}

// LoopConfig holds the collaborators of a Loop.
type LoopConfig struct {
	Camera      capture.Camera
	Detector    detector.Detector
	Interpreter *gesture.Interpreter
	Hub         *hub.Hub
	Metrics     *metrics.Metrics
	Interval    time.Duration
	Mirror      bool
}

// Run is one pass of the detection loop, from camera open to camera close.
type Run struct {
	id      string
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	frames  atomic.Int64
	err     error
}

// ID returns the run's unique id.
func (r *Run) ID() string { return r.id }

// StartedAt returns when the run started.
func (r *Run) StartedAt() time.Time { return r.started }

// Done is closed once the run has exited and released the camera.
func (r *Run) Done() <-chan struct{} { return r.done }

// Frames returns how many frames were published so far.
func (r *Run) Frames() int64 { return r.frames.Load() }

// Err returns the error the run ended with, nil for a requested stop.
// It is only meaningful after Done is closed.
func (r *Run) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Stop cancels the run and waits for it to exit.
func (r *Run) Stop() {
	r.cancel()
	<-r.done
}

// Loop reads frames, detects hands, interprets them and publishes the
// resulting state. At most one run is active at a time.
type Loop struct {
	cfg LoopConfig

	mu       sync.Mutex
	state    LoopState
	run      *Run
	displays []Display
}

// NewLoop creates an idle loop.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Loop{cfg: cfg}
}

// AddDisplay attaches d to every later frame.
func (l *Loop) AddDisplay(d Display) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.displays = append(l.displays, d)
}

// Start begins a run unless one is already active, in which case that run
// is returned with started set to false and the camera is left alone.
// The run lives until ctx is cancelled, Stop is called or it fails.
func (l *Loop) Start(ctx context.Context) (run *Run, started bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run != nil {
		return l.run, false, nil
	}

	if err := l.cfg.Camera.Open(); err != nil {
		return nil, false, fmt.Errorf("open camera: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		id:      uuid.NewString(),
		started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	l.run = r
	l.state = Running
	l.cfg.Metrics.RunStarted()

	go l.loop(runCtx, r)

	return r, true, nil
}

// Stop ends the active run, if any, and waits for it to release the camera.
func (l *Loop) Stop() {
	if r := l.Active(); r != nil {
		r.Stop()
	}
}

// State returns the loop's lifecycle state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Active returns the running run, or nil.
func (l *Loop) Active() *Run {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.run
}

func (l *Loop) loop(ctx context.Context, r *Run) {
	defer close(r.done)
	defer l.finish(r)
	defer func() {
		if err := l.cfg.Camera.Close(); err != nil {
			logger.Warn("Loop", "Error closing camera: %v", err)
		}
	}()
	defer r.cancel()

	r.err = l.process(ctx, r)
}

func (l *Loop) finish(r *Run) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run == r {
		l.run = nil
		l.state = Stopped
	}
	l.cfg.Metrics.RunEnded(Reason(r.err))
}

func (l *Loop) process(ctx context.Context, r *Run) error {
	state := l.cfg.Hub.Current()

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		began := time.Now()
		frame, err := l.cfg.Camera.ReadFrame()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFrameUnavailable, err)
		}

		next, hands, keep, err := l.step(frame, state)
		if err != nil {
			return err
		}
		state = next
		r.frames.Add(1)
		l.cfg.Metrics.ObserveFrame(hands, time.Since(began))

		if !keep {
			logger.Info("Loop", "Display requested stop")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// step handles one frame and always closes it.
func (l *Loop) step(frame *gocv.Mat, prev gesture.State) (next gesture.State, hands int, keep bool, err error) {
	defer frame.Close()

	if l.cfg.Mirror {
		capture.Mirror(frame)
	}

	detected, err := l.detect(frame)
	if err != nil {
		return prev, 0, false, fmt.Errorf("%w: %w", ErrDetectorFailure, err)
	}

	next = l.cfg.Interpreter.Interpret(prev, detected)
	l.cfg.Hub.Publish(next)

	l.mu.Lock()
	var displays []Display
	for _, d := range l.displays {
		if d.Wants() {
			displays = append(displays, d)
		}
	}
	l.mu.Unlock()

	keep = true
	if len(displays) == 0 {
		return next, len(detected), keep, nil
	}

	DrawOverlay(frame, detected, next)
	for _, d := range displays {
		if !d.Show(frame) {
			keep = false
		}
	}

	return next, len(detected), keep, nil
}

func (l *Loop) detect(frame *gocv.Mat) (hands []detector.Hand, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return l.cfg.Detector.Detect(frame)
}
