// Package config parses handorbit configuration from the environment and
// command-line flags. Flags take precedence over environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds handorbit command configuration.
type Config struct {
	Addr      string `env:"HANDORBIT_ADDR" envDefault:"0.0.0.0:5000"`
	StaticDir string `env:"HANDORBIT_STATIC_DIR"`
	DataDir   string `env:"HANDORBIT_DATA_DIR"`
	NoStore   bool   `env:"HANDORBIT_NO_STORE"`

	CameraID    int           `env:"HANDORBIT_CAMERA_ID" envDefault:"0"`
	FrameWidth  int           `env:"HANDORBIT_FRAME_WIDTH" envDefault:"640"`
	FrameHeight int           `env:"HANDORBIT_FRAME_HEIGHT" envDefault:"480"`
	CameraFPS   int           `env:"HANDORBIT_CAMERA_FPS" envDefault:"30"`
	Interval    time.Duration `env:"HANDORBIT_INTERVAL" envDefault:"33ms"`
	Mirror      bool          `env:"HANDORBIT_MIRROR" envDefault:"true"`

	AutoStart bool `env:"HANDORBIT_AUTO_START" envDefault:"true"`
	Preview   bool `env:"HANDORBIT_PREVIEW"`
	Tray      bool `env:"HANDORBIT_TRAY"`

	MediaPipeScript string `env:"HANDORBIT_MEDIAPIPE_SCRIPT"`
	PythonPath      string `env:"HANDORBIT_PYTHON"`

	LogLevel string `env:"HANDORBIT_LOG_LEVEL" envDefault:"info"`
	LogColor bool   `env:"HANDORBIT_LOG_COLOR" envDefault:"true"`

	Smoothing        bool `env:"HANDORBIT_SMOOTHING"`
	SubscriberBuffer int  `env:"HANDORBIT_SUBSCRIBER_BUFFER" envDefault:"16"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		return Config{}, errors.New("flag parser is required")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "Directory of the viewer page served at /")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Data directory (default ~/.handorbit)")
	fs.BoolVar(&cfg.NoStore, "no-store", cfg.NoStore, "Run without the SQLite settings and run audit")
	fs.IntVar(&cfg.CameraID, "camera", cfg.CameraID, "Camera device ID")
	fs.IntVar(&cfg.FrameWidth, "width", cfg.FrameWidth, "Capture width")
	fs.IntVar(&cfg.FrameHeight, "height", cfg.FrameHeight, "Capture height")
	fs.IntVar(&cfg.CameraFPS, "fps", cfg.CameraFPS, "Requested camera frame rate")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Pause between detection loop iterations")
	fs.BoolVar(&cfg.Mirror, "mirror", cfg.Mirror, "Mirror frames horizontally before detection")
	fs.BoolVar(&cfg.AutoStart, "autostart", cfg.AutoStart, "Start detection at boot")
	fs.BoolVar(&cfg.Preview, "preview", cfg.Preview, "Show annotated frames in a desktop window")
	fs.BoolVar(&cfg.Tray, "tray", cfg.Tray, "Show the system tray menu")
	fs.StringVar(&cfg.MediaPipeScript, "mediapipe-script", cfg.MediaPipeScript, "Path to mediapipe_hands.py")
	fs.StringVar(&cfg.PythonPath, "python", cfg.PythonPath, "Python interpreter for the MediaPipe helper")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, silent)")
	fs.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "Colorize log levels")
	fs.BoolVar(&cfg.Smoothing, "smoothing", cfg.Smoothing, "Blend one-hand rotation with the previous value")
	fs.IntVar(&cfg.SubscriberBuffer, "subscriber-buffer", cfg.SubscriberBuffer, "Per-viewer state buffer before a slow viewer is dropped")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".handorbit")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the process cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr is required")
	case c.Interval <= 0:
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	case c.FrameWidth <= 0 || c.FrameHeight <= 0:
		return fmt.Errorf("frame size must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	case c.CameraFPS <= 0:
		return fmt.Errorf("fps must be positive, got %d", c.CameraFPS)
	case c.SubscriberBuffer <= 0:
		return fmt.Errorf("subscriber buffer must be positive, got %d", c.SubscriberBuffer)
	}
	return nil
}

// DBPath returns the SQLite database location inside DataDir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "handorbit.db")
}
