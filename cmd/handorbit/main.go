package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/handorbit/internal/app"
	"github.com/ayusman/handorbit/internal/capture"
	"github.com/ayusman/handorbit/internal/config"
	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/logger"
	"github.com/ayusman/handorbit/internal/metrics"
	"github.com/ayusman/handorbit/internal/server"
	"github.com/ayusman/handorbit/internal/store"
	"github.com/ayusman/handorbit/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "handorbit: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		logger.Error("Main", "%v", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Init(level, os.Stderr, cfg.LogColor)
	logger.Info("Main", "handorbit - hand-driven zoom and rotation")

	var st *store.Store
	if !cfg.NoStore {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		st, err = store.New(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("initialize store: %w", err)
		}
		defer st.Close()
		logger.Info("Main", "Using database %s", st.Path())
	}

	m := metrics.New()

	tuning := gesture.DefaultTuning()
	tuning.Smoothing = cfg.Smoothing

	application := app.New(app.Config{
		Camera: capture.NewCamera(capture.Options{
			DeviceID: cfg.CameraID,
			Width:    cfg.FrameWidth,
			Height:   cfg.FrameHeight,
			FPS:      cfg.CameraFPS,
		}),
		Detector:         newDetector(cfg),
		Store:            st,
		Metrics:          m,
		Tuning:           tuning,
		Interval:         cfg.Interval,
		Mirror:           cfg.Mirror,
		SubscriberBuffer: cfg.SubscriberBuffer,
	})

	feed := server.NewFrameFeed()
	application.AddDisplay(feed)

	var window *app.Window
	if cfg.Preview {
		window = app.NewWindow("handorbit")
		application.AddDisplay(window)
	}

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		logger.Info("Main", "Serving static files from %s", staticDir)
	}

	srv := server.New(server.Config{
		App:       application,
		Store:     st,
		Metrics:   m,
		Feed:      feed,
		StaticDir: staticDir,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var t *tray.Tray
	if cfg.Tray {
		t = tray.New(application)
		t.OnViewer(func() { openBrowser(viewerURL(cfg.Addr)) })
		t.OnQuit(stop)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Main", "Listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Main", "Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Main", "HTTP shutdown: %v", err)
		}
		if err := application.Close(); err != nil {
			logger.Warn("Main", "Close detector: %v", err)
		}
		if window != nil {
			window.Close()
		}
		if t != nil {
			t.Quit()
		}
		return nil
	})

	if cfg.AutoStart {
		if err := application.Begin(); err != nil {
			logger.Warn("Main", "Failed to start detection: %v", err)
		}
	}

	if t != nil {
		// The tray owns the main goroutine until it quits.
		t.Run()
		stop()
	}

	return g.Wait()
}

// newDetector returns the MediaPipe detector, or a detector that never sees
// hands when the helper is unavailable.
func newDetector(cfg config.Config) detector.Detector {
	dc := detector.DefaultConfig()
	dc.ScriptPath = cfg.MediaPipeScript
	dc.PythonPath = cfg.PythonPath

	d, err := detector.NewMediaPipeDetector(dc)
	if err != nil {
		logger.Warn("Main", "MediaPipe unavailable, hands will not be detected: %v", err)
		return detector.NewMockDetector()
	}
	return d
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and dataDir/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

// viewerURL turns a listen address into a browsable URL.
func viewerURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("Main", "Open %s: %v", url, err)
		return
	}
	go cmd.Wait()
}
