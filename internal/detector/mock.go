package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// Queued results are returned one per Detect call; once the queue is empty
// the fallback hands (or error) are returned on every call.
type MockDetector struct {
	mu     sync.Mutex
	queue  []mockResult
	hands  []Hand
	err    error
	calls  int
	closed bool
}

type mockResult struct {
	hands []Hand
	err   error
	panic any
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands returned once the queue is drained.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error returned once the queue is drained.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Enqueue appends a result for a single upcoming Detect call.
func (m *MockDetector) Enqueue(hands []Hand, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResult{hands: hands, err: err})
}

// EnqueuePanic makes an upcoming Detect call panic with v.
func (m *MockDetector) EnqueuePanic(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockResult{panic: v})
}

// Detect returns the next queued result, or the fallback hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	m.calls++
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		if next.panic != nil {
			panic(next.panic)
		}
		return next.hands, next.err
	}
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// HandAt returns a right hand whose wrist sits at wrist and whose index
// fingertip sits at tip. The remaining landmarks are interpolated along the
// wrist-to-tip line so the hand renders sensibly in overlays.
func HandAt(wrist, tip Landmark) Hand {
	h := Hand{Handedness: "Right", Score: 0.95}
	for i := 0; i < NumLandmarks; i++ {
		f := float64(i) / float64(NumLandmarks-1)
		h.Points[i] = Landmark{
			X: wrist.X + (tip.X-wrist.X)*f,
			Y: wrist.Y + (tip.Y-wrist.Y)*f,
		}
	}
	h.Points[Wrist] = wrist
	h.Points[IndexTip] = tip
	return h
}

// PointingHand returns a preset right hand with the index finger extended
// straight up and the other fingers curled.
func PointingHand() Hand {
	h := Hand{Handedness: "Right", Score: 0.95}

	h.Points[Wrist] = Landmark{X: 0.5, Y: 0.8}

	h.Points[ThumbCMC] = Landmark{X: 0.55, Y: 0.75}
	h.Points[ThumbMCP] = Landmark{X: 0.58, Y: 0.70}
	h.Points[ThumbIP] = Landmark{X: 0.57, Y: 0.66}
	h.Points[ThumbTip] = Landmark{X: 0.54, Y: 0.65}

	h.Points[IndexMCP] = Landmark{X: 0.55, Y: 0.68}
	h.Points[IndexPIP] = Landmark{X: 0.55, Y: 0.55}
	h.Points[IndexDIP] = Landmark{X: 0.55, Y: 0.45}
	h.Points[IndexTip] = Landmark{X: 0.55, Y: 0.35}

	h.Points[MiddleMCP] = Landmark{X: 0.50, Y: 0.66}
	h.Points[MiddlePIP] = Landmark{X: 0.50, Y: 0.64}
	h.Points[MiddleDIP] = Landmark{X: 0.48, Y: 0.67}
	h.Points[MiddleTip] = Landmark{X: 0.47, Y: 0.70}

	h.Points[RingMCP] = Landmark{X: 0.45, Y: 0.68}
	h.Points[RingPIP] = Landmark{X: 0.45, Y: 0.66}
	h.Points[RingDIP] = Landmark{X: 0.43, Y: 0.69}
	h.Points[RingTip] = Landmark{X: 0.42, Y: 0.72}

	h.Points[PinkyMCP] = Landmark{X: 0.40, Y: 0.70}
	h.Points[PinkyPIP] = Landmark{X: 0.40, Y: 0.68}
	h.Points[PinkyDIP] = Landmark{X: 0.38, Y: 0.71}
	h.Points[PinkyTip] = Landmark{X: 0.37, Y: 0.74}

	return h
}
