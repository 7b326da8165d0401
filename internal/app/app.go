// Package app runs the detection loop and controls detection sessions for
// handorbit.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/hub"
	"github.com/ayusman/handorbit/internal/logger"
	"github.com/ayusman/handorbit/internal/metrics"
	"github.com/ayusman/handorbit/internal/store"
)

// ErrClosed is returned by Begin after Close.
var ErrClosed = errors.New("app closed")

// Config holds configuration options for the application.
type Config struct {
	Camera           capture.Camera
	Detector         detector.Detector
	Store            *store.Store
	Metrics          *metrics.Metrics
	Tuning           gesture.Tuning
	Interval         time.Duration
	Mirror           bool
	SubscriberBuffer int
}

// Status is a snapshot of the application for the HTTP API and tray.
type Status struct {
	State       gesture.State `json:"state"`
	Running     bool          `json:"running"`
	LoopState   string        `json:"loop_state"`
	RunID       string        `json:"run_id,omitempty"`
	Frames      int64         `json:"frames"`
	Subscribers int           `json:"subscribers"`
	CameraOpen  bool          `json:"camera_open"`
	CameraFPS   int           `json:"camera_fps"`
}

// App owns the detection loop and the broadcast hub and starts, stops and
// audits detection runs.
type App struct {
	config Config
	loop   *Loop
	hub    *hub.Hub
	interp *gesture.Interpreter

	ctx    context.Context
	cancel context.CancelFunc

	// runMu orders run starts against Stop so a supervisor is always
	// counted in wg before anyone waits on it.
	runMu sync.Mutex
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// New creates a new App. A tuning saved in the store takes precedence over
// config.Tuning.
func New(config Config) *App {
	tuning := config.Tuning
	if tuning == (gesture.Tuning{}) {
		tuning = gesture.DefaultTuning()
	}
	if config.Store != nil {
		var saved gesture.Tuning
		err := config.Store.Settings().Load(store.SettingTuning, &saved)
		switch {
		case err == nil && saved.Validate() == nil:
			tuning = saved
			logger.Info("App", "Loaded saved tuning")
		case err == nil:
			logger.Warn("App", "Ignoring invalid saved tuning: %v", saved.Validate())
		case !errors.Is(err, store.ErrNotFound):
			logger.Warn("App", "Failed to load saved tuning: %v", err)
		}

		if n, err := config.Store.Runs().CloseDangling(ReasonError); err != nil {
			logger.Warn("App", "Failed to close dangling runs: %v", err)
		} else if n > 0 {
			logger.Info("App", "Closed %d runs left open by a previous process", n)
		}
	}

	interp := gesture.NewInterpreter(tuning)
	if err := tuning.Validate(); err != nil {
		logger.Warn("App", "Invalid tuning %+v (%v), using defaults", tuning, err)
		interp = gesture.NewInterpreter(gesture.DefaultTuning())
	}

	h := hub.New(gesture.DefaultState(),
		hub.WithBuffer(config.SubscriberBuffer),
		hub.WithMetrics(config.Metrics),
	)

	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		config: config,
		hub:    h,
		interp: interp,
		ctx:    ctx,
		cancel: cancel,
		loop: NewLoop(LoopConfig{
			Camera:      config.Camera,
			Detector:    config.Detector,
			Interpreter: interp,
			Hub:         h,
			Metrics:     config.Metrics,
			Interval:    config.Interval,
			Mirror:      config.Mirror,
		}),
	}
}

// Begin starts detection. Calling it while a run is active is a no-op.
func (a *App) Begin() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.ctx.Err() != nil {
		return ErrClosed
	}

	run, started, err := a.loop.Start(a.ctx)
	if err != nil {
		logger.Error("App", "Failed to start detection: %v", err)
		return err
	}
	if !started {
		logger.Debug("App", "Detection already running (run %s)", run.ID())
		return nil
	}

	logger.Info("App", "Detection run %s started", run.ID())

	if a.config.Store != nil {
		rec := &store.Run{ID: run.ID(), StartedAt: run.StartedAt()}
		if err := a.config.Store.Runs().Create(rec); err != nil {
			logger.Warn("App", "Failed to record run %s: %v", run.ID(), err)
		}
	}

	a.wg.Add(1)
	go a.supervise(run)

	return nil
}

func (a *App) supervise(run *Run) {
	defer a.wg.Done()
	<-run.Done()

	err := run.Err()
	reason := Reason(err)
	if err != nil {
		logger.Error("App", "Detection run %s ended (%s) after %d frames: %v", run.ID(), reason, run.Frames(), err)
	} else {
		logger.Info("App", "Detection run %s stopped after %d frames", run.ID(), run.Frames())
	}

	if a.config.Store != nil {
		errText := ""
		if err != nil {
			errText = err.Error()
		}
		if err := a.config.Store.Runs().Finish(run.ID(), reason, run.Frames(), errText); err != nil {
			logger.Warn("App", "Failed to finish run %s: %v", run.ID(), err)
		}
	}
}

// Stop ends the active run, if any, and waits until it has been audited.
func (a *App) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	r := a.loop.Active()
	if r == nil {
		return
	}
	r.Stop()
	a.wg.Wait()
}

// Join registers a viewer. The subscriber's first message is the current state.
func (a *App) Join() *hub.Subscriber {
	return a.hub.Subscribe()
}

// Leave unregisters a viewer. It is safe to call more than once.
func (a *App) Leave(sub *hub.Subscriber) {
	a.hub.Unsubscribe(sub)
}

// Current returns the most recently published state.
func (a *App) Current() gesture.State {
	return a.hub.Current()
}

// Running reports whether a run is active.
func (a *App) Running() bool {
	return a.loop.Active() != nil
}

// Status returns a snapshot of the application.
func (a *App) Status() Status {
	st := Status{
		State:       a.hub.Current(),
		LoopState:   a.loop.State().String(),
		Subscribers: a.hub.Len(),
	}
	if a.config.Camera != nil {
		st.CameraOpen = a.config.Camera.IsOpen()
		st.CameraFPS = a.config.Camera.FPS()
	}
	if r := a.loop.Active(); r != nil {
		st.Running = true
		st.RunID = r.ID()
		st.Frames = r.Frames()
	}
	return st
}

// Tuning returns the interpreter's current tuning.
func (a *App) Tuning() gesture.Tuning {
	return a.interp.Tuning()
}

// ApplyTuning validates t, saves it to the store and installs it on the
// running interpreter. A tuning that cannot be saved is not installed.
func (a *App) ApplyTuning(t gesture.Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if a.config.Store != nil {
		if err := a.config.Store.Settings().Save(store.SettingTuning, t); err != nil {
			return fmt.Errorf("save tuning: %w", err)
		}
	}

	if err := a.interp.SetTuning(t); err != nil {
		return err
	}
	logger.Info("App", "Tuning updated: %+v", t)
	return nil
}

// AddDisplay attaches a display to the frames of every later iteration.
func (a *App) AddDisplay(d Display) {
	a.loop.AddDisplay(d)
}

// Hub returns the broadcast hub.
func (a *App) Hub() *hub.Hub {
	return a.hub
}

// Close stops detection, drops all viewers and closes the detector.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.cancel()
		a.Stop()
		a.wg.Wait()
		a.hub.Close()
		if a.config.Detector != nil {
			err = a.config.Detector.Close()
		}
		logger.Info("App", "Shut down")
	})
	return err
}
