package server

import (
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handorbit/internal/app"
	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/metrics"
	"github.com/ayusman/handorbit/internal/store"
)

type testEnv struct {
	app      *app.App
	camera   *capture.MockCamera
	detector *detector.MockDetector
	store    *store.Store
	metrics  *metrics.Metrics
	feed     *FrameFeed
	server   *Server
}

// newTestEnv wires a server to an App running on a looping mock camera.
func newTestEnv(t *testing.T, staticDir string) *testEnv {
	t.Helper()

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	env := &testEnv{
		camera:   capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		detector: detector.NewMockDetector(),
		store:    s,
		metrics:  metrics.New(),
		feed:     NewFrameFeed(),
	}
	env.app = app.New(app.Config{
		Camera:   env.camera,
		Detector: env.detector,
		Store:    s,
		Metrics:  env.metrics,
		Interval: 2 * time.Millisecond,
		Mirror:   true,
	})
	t.Cleanup(func() { env.app.Close() })
	env.app.AddDisplay(env.feed)

	env.server = New(Config{
		App:       env.app,
		Store:     s,
		Metrics:   env.metrics,
		Feed:      env.feed,
		StaticDir: staticDir,
	})
	return env
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
