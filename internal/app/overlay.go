package app

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/handorbit/internal/detector"
	"github.com/ayusman/handorbit/internal/gesture"
)

// HelpText is drawn along the bottom of annotated frames.
const HelpText = "Two hands: Zoom | One hand: Rotate"

var (
	landmarkColor   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	connectionColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	textColor       = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	helpColor       = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Text placement on a 640x480 frame. The help line sits 30px above the
// bottom edge on other frame heights.
const (
	lineTop    = 30
	lineStep   = 30
	lineScale  = 0.7
	helpMargin = 30
	helpScale  = 0.5
)

// OverlayLines returns the state lines drawn on annotated frames.
func OverlayLines(s gesture.State) []string {
	return []string{
		fmt.Sprintf("Zoom: %.1f", s.Zoom),
		fmt.Sprintf("Rotate X: %.1f", s.RotateX),
		fmt.Sprintf("Rotate Y: %.1f", s.RotateY),
	}
}

// DrawOverlay draws the hand skeletons, the current state and the help line
// onto frame.
func DrawOverlay(frame *gocv.Mat, hands []detector.Hand, s gesture.State) {
	if frame == nil || frame.Empty() {
		return
	}
	w, h := frame.Cols(), frame.Rows()

	for i := range hands {
		drawHand(frame, &hands[i], w, h)
	}

	for i, line := range OverlayLines(s) {
		gocv.PutText(frame, line, StateLineOrigin(i), gocv.FontHersheySimplex, lineScale, textColor, 2)
	}
	gocv.PutText(frame, HelpText, HelpOrigin(h), gocv.FontHersheySimplex, helpScale, helpColor, 1)
}

// StateLineOrigin is the baseline origin of state line i.
func StateLineOrigin(i int) image.Point {
	return image.Pt(10, lineTop+lineStep*i)
}

// HelpOrigin is the baseline origin of the help line on a frame of the given
// height.
func HelpOrigin(height int) image.Point {
	return image.Pt(10, height-helpMargin)
}

func drawHand(frame *gocv.Mat, hand *detector.Hand, w, h int) {
	px := func(l detector.Landmark) image.Point {
		return image.Pt(int(l.X*float64(w)), int(l.Y*float64(h)))
	}

	for _, c := range detector.Connections {
		gocv.Line(frame, px(hand.Points[c[0]]), px(hand.Points[c[1]]), connectionColor, 2)
	}
	for _, p := range hand.Points {
		gocv.Circle(frame, px(p), 4, landmarkColor, -1)
	}
}

// Window shows annotated frames in a desktop window. Pressing q ends the run.
type Window struct {
	title string

	mu  sync.Mutex
	win *gocv.Window
}

// NewWindow returns a window display. The OS window opens on the first frame.
func NewWindow(title string) *Window {
	return &Window{title: title}
}

// Wants reports true: the preview shows every frame.
func (w *Window) Wants() bool { return true }

// Show displays frame and reports false once q is pressed.
func (w *Window) Show(frame *gocv.Mat) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.win == nil {
		w.win = gocv.NewWindow(w.title)
	}
	w.win.IMShow(*frame)
	return w.win.WaitKey(1)&0xff != 'q'
}

// Close destroys the OS window if it was opened.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}
