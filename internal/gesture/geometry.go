// Package gesture turns detected hand landmarks into the zoom and rotation
// control state consumed by viewers.
package gesture

import (
	"math"

	"github.com/ayusman/handorbit/internal/detector"
)

// Distance returns the Euclidean distance between a and b in normalized
// image coordinates. Z is ignored.
func Distance(a, b detector.Landmark) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Angle returns the direction of the vector from a to b in degrees, in the
// range (-180, 180].
func Angle(a, b detector.Landmark) float64 {
	deg := math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
	if deg == -180 {
		return 180
	}
	return deg
}
