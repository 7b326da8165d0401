// Package server provides the HTTP and WebSocket surface of handorbit.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/handorbit/internal/app"
	"github.com/ayusman/handorbit/internal/logger"
	"github.com/ayusman/handorbit/internal/metrics"
	"github.com/ayusman/handorbit/internal/server/api"
	"github.com/ayusman/handorbit/internal/store"
)

// Config holds the server configuration.
type Config struct {
	App       *app.App
	Store     *store.Store
	Metrics   *metrics.Metrics
	Feed      *FrameFeed
	StaticDir string
}

// Server routes HTTP requests to the application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/detection/start", s.handleDetectionStart)
	s.mux.HandleFunc("/api/detection/stop", s.handleDetectionStop)
	s.mux.HandleFunc("/test", s.handleTest)
	s.mux.Handle("/ws", NewViewerHandler(s.config.App))
	s.mux.Handle("/api/settings/tuning", api.NewTuningHandler(s.config.App))

	if s.config.Store != nil {
		runs := api.NewRunsHandler(s.config.Store)
		s.mux.Handle("/api/runs", runs)
		s.mux.Handle("/api/runs/", runs)
	}

	if s.config.Feed != nil {
		s.mux.Handle("/api/stream", s.config.Feed)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleState handles GET /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.App.Status())
}

// handleTest answers the plain-text liveness probe used by the viewer page.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Server is running! Current gesture data: %s", s.config.App.Current())
}

// handleDetectionStart handles POST /api/detection/start.
func (s *Server) handleDetectionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.config.App.Begin(); err != nil {
		logger.Warn("Server", "Detection start failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.config.App.Status())
}

// handleDetectionStop handles POST /api/detection/stop.
func (s *Server) handleDetectionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.config.App.Stop()
	writeJSON(w, http.StatusOK, s.config.App.Status())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debug("Server", "Failed to encode response: %v", err)
	}
}
