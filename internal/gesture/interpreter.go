package gesture

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ayusman/handorbit/internal/detector"
)

// Tuning holds the constants of the landmark-to-control mapping.
type Tuning struct {
	// ZoomNear is the fingertip distance that maps to zoom 0.
	ZoomNear float64 `json:"zoom_near"`
	// ZoomGain scales (distance - ZoomNear) into zoom units.
	ZoomGain float64 `json:"zoom_gain"`
	// RotSensitivityX is degrees of rotate_x per unit of vertical displacement.
	RotSensitivityX float64 `json:"rot_sensitivity_x"`
	// RotSensitivityY is degrees of rotate_y per unit of horizontal displacement.
	RotSensitivityY float64 `json:"rot_sensitivity_y"`
	// RotSmoothing is the blend factor used when Smoothing is on (0-1, higher is more responsive).
	RotSmoothing float64 `json:"rot_smoothing"`
	// Smoothing enables exponential blending of rotation values. Off by default:
	// rotation follows the hand directly.
	Smoothing bool `json:"smoothing"`
}

// DefaultTuning returns the calibrated defaults: a fingertip distance of
// 0.05 maps to zoom 0 and roughly 0.8 maps to zoom 100.
func DefaultTuning() Tuning {
	return Tuning{
		ZoomNear:        0.05,
		ZoomGain:        133,
		RotSensitivityX: 90,
		RotSensitivityY: 90,
		RotSmoothing:    0.5,
		Smoothing:       false,
	}
}

// Validate reports whether t can be used by the interpreter.
func (t Tuning) Validate() error {
	values := map[string]float64{
		"zoom_near":         t.ZoomNear,
		"zoom_gain":         t.ZoomGain,
		"rot_sensitivity_x": t.RotSensitivityX,
		"rot_sensitivity_y": t.RotSensitivityY,
		"rot_smoothing":     t.RotSmoothing,
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	if t.ZoomNear < 0 {
		return errors.New("zoom_near must not be negative")
	}
	if t.ZoomGain <= 0 {
		return errors.New("zoom_gain must be positive")
	}
	if t.RotSmoothing <= 0 || t.RotSmoothing > 1 {
		return errors.New("rot_smoothing must be in (0, 1]")
	}
	return nil
}

// Interpret computes the next control state from the previous one and the
// hands detected in a single frame.
//
// Two hands set zoom from the distance between their index fingertips. One
// hand sets both rotations from the wrist-to-fingertip vector. Any other
// count carries prev over unchanged. Hands are used in the order the
// detector reported them.
func Interpret(prev State, hands []detector.Hand, t Tuning) State {
	switch len(hands) {
	case 2:
		next := prev
		d := Distance(hands[0].Points[detector.IndexTip], hands[1].Points[detector.IndexTip])
		next.Zoom = clamp((d-t.ZoomNear)*t.ZoomGain, MinZoom, MaxZoom)
		return next

	case 1:
		next := prev
		wrist := hands[0].Points[detector.Wrist]
		tip := hands[0].Points[detector.IndexTip]
		dx := tip.X - wrist.X
		dy := tip.Y - wrist.Y // image y grows downward

		rotY := dx * t.RotSensitivityY
		rotX := -dy * t.RotSensitivityX
		if t.Smoothing {
			rotY = blend(prev.RotateY, rotY, t.RotSmoothing)
			rotX = blend(prev.RotateX, rotX, t.RotSmoothing)
		}
		next.RotateX = rotX
		next.RotateY = rotY
		return next

	default:
		return prev
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func blend(prev, target, alpha float64) float64 {
	return prev + alpha*(target-prev)
}

// Interpreter applies Interpret with a tuning that can be replaced while
// the detection loop is running.
type Interpreter struct {
	mu     sync.RWMutex
	tuning Tuning
}

// NewInterpreter creates an Interpreter with the given tuning.
func NewInterpreter(t Tuning) *Interpreter {
	return &Interpreter{tuning: t}
}

// Interpret computes the next state using the current tuning.
func (i *Interpreter) Interpret(prev State, hands []detector.Hand) State {
	return Interpret(prev, hands, i.Tuning())
}

// Tuning returns the current tuning.
func (i *Interpreter) Tuning() Tuning {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tuning
}

// SetTuning validates and installs t.
func (i *Interpreter) SetTuning(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tuning = t
	return nil
}
