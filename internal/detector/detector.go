package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the hands found in it, in
	// detector order. Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]Hand, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath points at the MediaPipe helper script. Empty means search
	// the usual install locations.
	ScriptPath string

	// PythonPath is the interpreter used to run the helper. Empty means a
	// virtualenv python if one is found, python3 otherwise.
	PythonPath string

	// IdleTimeout shuts the helper process down after this long without a
	// Detect call.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.7,
		MinTrackingConf: 0.7,
		IdleTimeout:     30 * time.Second,
	}
}
