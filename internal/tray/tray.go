// Package tray provides a system tray menu for starting and stopping
// handorbit detection.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/logger"
)

// refreshInterval is how often the state line is redrawn.
const refreshInterval = 500 * time.Millisecond

// Controller is the part of the application the tray drives.
type Controller interface {
	Begin() error
	Stop()
	Running() bool
	Current() gesture.State
}

// Tray represents the system tray application.
type Tray struct {
	ctrl      Controller
	onViewer  func()
	onQuit    func()
	mu        sync.RWMutex
	quit      chan struct{}
	closeOnce sync.Once

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuState  *systray.MenuItem
}

// New creates a Tray driving ctrl.
func New(ctrl Controller) *Tray {
	return &Tray{
		ctrl: ctrl,
		quit: make(chan struct{}),
	}
}

// OnViewer sets the callback called when the viewer menu item is clicked.
func (t *Tray) OnViewer(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onViewer = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called or the quit item is clicked.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray.
func (t *Tray) Quit() {
	t.closeOnce.Do(func() { close(t.quit) })
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("handorbit")
	systray.SetTooltip("handorbit hand control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(ToggleTitle(t.ctrl.Running()), "Start or stop detection")
	systray.AddSeparator()

	t.menuState = systray.AddMenuItem(StateTitle(t.ctrl.Current()), "Current control state")
	t.menuState.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuViewer := systray.AddMenuItem("Open Viewer...", "Open the viewer in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handorbit")

	ticker := time.NewTicker(refreshInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuViewer.ClickedCh:
				t.handleViewer()
			case <-ticker.C:
				t.refresh()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			case <-t.quit:
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	logger.Debug("Tray", "Exited")
}

// handleToggle starts detection when idle and stops it when running.
func (t *Tray) handleToggle() {
	if t.ctrl.Running() {
		t.ctrl.Stop()
	} else if err := t.ctrl.Begin(); err != nil {
		logger.Warn("Tray", "Failed to start detection: %v", err)
	}
	t.refresh()
}

// refresh redraws the toggle and state items.
func (t *Tray) refresh() {
	running := t.ctrl.Running()
	state := t.ctrl.Current()

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(ToggleTitle(running))
	}
	if t.menuState != nil {
		t.menuState.SetTitle(StateTitle(state))
	}
}

// handleViewer handles the viewer menu item click.
func (t *Tray) handleViewer() {
	t.mu.RLock()
	callback := t.onViewer
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	t.Quit()
}

// ToggleTitle is the label of the start/stop item.
func ToggleTitle(running bool) string {
	if running {
		return "● Detecting (click to stop)"
	}
	return "○ Stopped (click to start)"
}

// StateTitle is the label of the state item.
func StateTitle(s gesture.State) string {
	return fmt.Sprintf("Zoom %.1f | X %.1f | Y %.1f", s.Zoom, s.RotateX, s.RotateY)
}
