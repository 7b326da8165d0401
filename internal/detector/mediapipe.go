package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrScriptNotFound is returned when the MediaPipe helper script cannot be located.
var ErrScriptNotFound = errors.New("mediapipe_hands.py not found")

const scriptName = "mediapipe_hands.py"

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Frames are written to the helper's stdin as a 4-byte big-endian length
// followed by a JPEG payload; the helper answers each frame with one JSON line.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	pythonPath string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findScript()
	}
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("stat %s: %w", scriptPath, err)
	}

	pythonPath := config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
		pythonPath: pythonPath,
	}, nil
}

// Detect sends the frame to the helper and returns the hands it reports.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	if _, err := d.stdin.Write(length[:]); err != nil {
		d.kill()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		d.kill()
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.kill()
		return nil, fmt.Errorf("read response: %w", err)
	}

	hands, err := parseResponse(line)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return hands, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.pythonPath, d.scriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe helper: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()

	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

// kill tears down a helper whose pipes are in an unknown state so the next
// Detect call starts a fresh one.
func (d *MediaPipeDetector) kill() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// response is the JSON line written by the helper for every frame.
type response struct {
	Hands []jsonHand `json:"hands"`
	Error string     `json:"error,omitempty"`
}

type jsonHand struct {
	Points     []Landmark `json:"points"`
	Handedness string     `json:"handedness"`
	Score      float64    `json:"score"`
}

func parseResponse(line []byte) ([]Hand, error) {
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("mediapipe: %s", resp.Error)
	}

	hands := make([]Hand, 0, len(resp.Hands))
	for _, h := range resp.Hands {
		if len(h.Points) != NumLandmarks {
			return nil, fmt.Errorf("parse response: hand has %d landmarks, want %d", len(h.Points), NumLandmarks)
		}
		hand := Hand{Handedness: h.Handedness, Score: h.Score}
		copy(hand.Points[:], h.Points)
		hands = append(hands, hand)
	}
	return hands, nil
}

func findScript() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".handorbit", "scripts", scriptName),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".handorbit/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
