package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"labelerdir/internal/labelers"
	"labelerdir/internal/snapshot"
)

// Server provides the HTTP API over the labeler snapshot
type Server struct {
	addr   string
	token  string
	store  *snapshot.Store
	server *http.Server
	logger *log.Logger
}

// NewServer creates a new HTTP server
func NewServer(addr, token string, store *snapshot.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		addr:   addr,
		token:  token,
		store:  store,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/labelers", s.handleLabelers)
	mux.HandleFunc("/api/refresh", s.handleRefresh)

	return s.corsMiddleware(mux)
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Printf("API server starting on http://%s", s.addr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// corsMiddleware lets any origin read the directory
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validateToken checks the authorization token
func (s *Server) validateToken(r *http.Request) bool {
	if s.token == "" {
		return true // No token required if not set
	}
	return r.Header.Get("Authorization") == "Bearer "+s.token
}

// handleStatus returns snapshot status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.store.Status()
	status := "ok"
	if s.store.Current() == nil {
		status = "pending"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"snapshot": st,
	})
}

// handleLabelers returns the ranked labelers, optionally filtered by ?q=
func (s *Server) handleLabelers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	current := s.store.Current()
	if current == nil {
		http.Error(w, "Labelers not generated yet", http.StatusServiceUnavailable)
		return
	}

	result := *current
	if q := r.URL.Query().Get("q"); q != "" {
		result.Labelers = labelers.Filter(current.Labelers, q)
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRefresh regenerates the snapshot synchronously
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.validateToken(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := s.store.Refresh(r.Context())
	switch {
	case errors.Is(err, snapshot.ErrBusy):
		http.Error(w, "Server busy", http.StatusTooManyRequests)
		return
	case err != nil:
		s.logger.Printf("Refresh error: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"snapshot": s.store.Status(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
