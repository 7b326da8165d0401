// Package hub fans the current control state out to connected viewers.
//
// The hub keeps a single current-state cell. Publish replaces it and pushes
// the new value to every subscriber without blocking; a subscriber whose
// buffer is full is dropped. Subscribe hands the state at join time to the
// new subscriber before any later publish.
package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ayusman/handorbit/internal/gesture"
	"github.com/ayusman/handorbit/internal/logger"
	"github.com/ayusman/handorbit/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Subscriber is a handle for one registered viewer.
type Subscriber struct {
	id     string
	ch     chan gesture.State
	closed bool
}

// ID returns the subscriber's unique id.
func (s *Subscriber) ID() string {
	return s.id
}

// C returns the channel that receives published states. It is closed when
// the subscriber is unsubscribed or dropped.
func (s *Subscriber) C() <-chan gesture.State {
	return s.ch
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithMetrics records publishes and subscriber churn.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// Hub holds the current state and the set of subscribers.
type Hub struct {
	mu          sync.Mutex
	current     gesture.State
	subscribers map[string]*Subscriber
	buffer      int
	metrics     *metrics.Metrics
	closed      bool
}

// New creates a hub whose current state starts at initial.
func New(initial gesture.State, opts ...Option) *Hub {
	h := &Hub{
		current:     initial,
		subscribers: make(map[string]*Subscriber),
		buffer:      DefaultBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish replaces the current state and offers it to every subscriber.
// It never blocks.
func (h *Hub) Publish(s gesture.State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = s
	h.metrics.ObservePublish(s.Zoom, s.RotateX, s.RotateY)

	for id, sub := range h.subscribers {
		select {
		case sub.ch <- s:
		default:
			logger.Warn("Hub", "Subscriber %s fell behind, dropping", id)
			h.removeLocked(sub, true)
		}
	}
}

// Subscribe registers a new subscriber. The current state is already
// queued on its channel when Subscribe returns. Subscribing to a closed hub
// returns a subscriber whose channel is closed.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan gesture.State, h.buffer),
	}
	if h.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}

	sub.ch <- h.current
	h.subscribers[sub.id] = sub
	h.metrics.SubscriberJoined()

	logger.Debug("Hub", "Subscriber %s joined (total: %d)", sub.id, len(h.subscribers))
	return sub
}

// Unsubscribe removes sub. Calling it more than once, or after the hub
// dropped sub, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.id]; !ok {
		return
	}
	h.removeLocked(sub, false)
	logger.Debug("Hub", "Subscriber %s left (remaining: %d)", sub.id, len(h.subscribers))
}

// Current returns the most recently published state.
func (h *Hub) Current() gesture.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close drops every subscriber. Later subscribers get a closed channel;
// Publish still updates the current state.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subscribers {
		h.removeLocked(sub, false)
	}
}

func (h *Hub) removeLocked(sub *Subscriber, dropped bool) {
	delete(h.subscribers, sub.id)
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	h.metrics.SubscriberLeft(dropped)
}
