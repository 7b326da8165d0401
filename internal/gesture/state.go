package gesture

import "fmt"

// Default control values at process start.
const (
	DefaultZoom = 85.0
	MinZoom     = 0.0
	MaxZoom     = 100.0
)

// State is the control signal pushed to viewers. Zoom is in [0, 100] where
// 100 is closest; rotations are in degrees.
type State struct {
	Zoom    float64 `json:"zoom"`
	RotateX float64 `json:"rotate_x"`
	RotateY float64 `json:"rotate_y"`
}

// DefaultState returns the state every process starts from.
func DefaultState() State {
	return State{Zoom: DefaultZoom}
}

// String formats the state the way the diagnostic route and overlay show it.
func (s State) String() string {
	return fmt.Sprintf("{zoom: %.1f, rotate_x: %.1f, rotate_y: %.1f}", s.Zoom, s.RotateX, s.RotateY)
}
