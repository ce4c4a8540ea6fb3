package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"gamechat/internal/relay"
	"gamechat/pkg/interfaces"
	"gamechat/pkg/types"
)

// Server exposes the HTTP surface next to the relay endpoint: a liveness
// probe and a small diagnostics API.
type Server struct {
	store    interfaces.MessageStore
	registry *relay.Registry
	mux      *http.ServeMux
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status   string `json:"status"`
	Time     string `json:"time"`
	Database string `json:"database"`
}

// StatsResponse is the /api/stats payload.
type StatsResponse struct {
	Connections    map[string]int   `json:"connections"`
	RecentMessages []*types.Message `json:"recent_messages"`
}

// ErrorResponse is the uniform error payload for the HTTP surface.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP surface and registers its routes.
func NewServer(store interfaces.MessageStore, registry *relay.Registry) *Server {
	s := &Server{
		store:    store,
		registry: registry,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/stats", s.handleStats)

	return s
}

// Handle mounts an additional route on the server's mux; the relay endpoint
// is attached this way so one listener serves everything.
func (s *Server) Handle(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Handler returns the complete HTTP handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:   "ok",
		Time:     time.Now().UTC().Format(time.RFC3339),
		Database: "ok",
	}

	status := http.StatusOK
	if err := s.store.HealthCheck(ctx); err != nil {
		log.WithError(err).Warn("health check: store unreachable")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	s.sendJSON(w, status, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	messages, err := s.store.RecentMessages(ctx, 20)
	if err != nil {
		log.WithError(err).Error("failed to load recent messages")
		s.sendError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	s.sendJSON(w, http.StatusOK, StatsResponse{
		Connections:    s.registry.Stats(),
		RecentMessages: messages,
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}

// logRequests records every request with timing.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"duration": time.Since(start).String(),
		}).Debug("http request")
	})
}
