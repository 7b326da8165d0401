// Package metrics exposes Prometheus collectors for the detection loop and
// the viewer broadcast hub.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesTotal        prometheus.Counter
	handsObserved      *prometheus.CounterVec
	iterationSeconds   prometheus.Histogram
	publishesTotal     prometheus.Counter
	subscribers        prometheus.Gauge
	subscribersJoined  prometheus.Counter
	subscribersDropped prometheus.Counter
	runsTotal          *prometheus.CounterVec
	runActive          prometheus.Gauge
	zoom               prometheus.Gauge
	rotateX            prometheus.Gauge
	rotateY            prometheus.Gauge
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handorbit_frames_total",
			Help: "Frames processed by the detection loop",
		}),
		handsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handorbit_frames_by_hands_total",
			Help: "Frames processed, partitioned by the number of hands detected",
		}, []string{"hands"}),
		iterationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "handorbit_loop_iteration_seconds",
			Help:    "Time spent reading, detecting and publishing one frame",
			Buckets: []float64{.005, .01, .02, .033, .05, .1, .25, .5},
		}),
		publishesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handorbit_publishes_total",
			Help: "Control states published to the hub",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "handorbit_subscribers",
			Help: "Currently connected viewers",
		}),
		subscribersJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handorbit_subscribers_joined_total",
			Help: "Viewers that subscribed",
		}),
		subscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handorbit_subscribers_dropped_total",
			Help: "Viewers dropped because they could not keep up",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handorbit_runs_total",
			Help: "Detection runs that ended, by reason",
		}, []string{"reason"}),
		runActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "handorbit_run_active",
			Help: "Detection run active (0=idle/stopped, 1=running)",
		}),
		zoom: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "handorbit_state_zoom",
			Help: "Current zoom value",
		}),
		rotateX: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "handorbit_state_rotate_x_degrees",
			Help: "Current rotate_x value",
		}),
		rotateY: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "handorbit_state_rotate_y_degrees",
			Help: "Current rotate_y value",
		}),
	}

	m.registry.MustRegister(
		m.framesTotal,
		m.handsObserved,
		m.iterationSeconds,
		m.publishesTotal,
		m.subscribers,
		m.subscribersJoined,
		m.subscribersDropped,
		m.runsTotal,
		m.runActive,
		m.zoom,
		m.rotateX,
		m.rotateY,
	)

	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFrame records one processed frame.
func (m *Metrics) ObserveFrame(hands int, took time.Duration) {
	if m == nil {
		return
	}
	label := strconv.Itoa(hands)
	if hands > 2 {
		label = "3+"
	}
	m.framesTotal.Inc()
	m.handsObserved.WithLabelValues(label).Inc()
	m.iterationSeconds.Observe(took.Seconds())
}

// ObservePublish records a published state.
func (m *Metrics) ObservePublish(zoom, rotateX, rotateY float64) {
	if m == nil {
		return
	}
	m.publishesTotal.Inc()
	m.zoom.Set(zoom)
	m.rotateX.Set(rotateX)
	m.rotateY.Set(rotateY)
}

// SubscriberJoined records a new viewer.
func (m *Metrics) SubscriberJoined() {
	if m == nil {
		return
	}
	m.subscribersJoined.Inc()
	m.subscribers.Inc()
}

// SubscriberLeft records a viewer leaving. dropped is true when the hub
// removed it for falling behind.
func (m *Metrics) SubscriberLeft(dropped bool) {
	if m == nil {
		return
	}
	m.subscribers.Dec()
	if dropped {
		m.subscribersDropped.Inc()
	}
}

// RunStarted marks a detection run active.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runActive.Set(1)
}

// RunEnded marks the run finished for the given reason.
func (m *Metrics) RunEnded(reason string) {
	if m == nil {
		return
	}
	m.runActive.Set(0)
	m.runsTotal.WithLabelValues(reason).Inc()
}
