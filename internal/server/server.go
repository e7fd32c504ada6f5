// Package server provides the HTTP server for the nritya gesture engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/nritya/internal/engine"
	"github.com/ayusman/nritya/internal/plugin"
	"github.com/ayusman/nritya/internal/server/api"
	"github.com/ayusman/nritya/internal/store"
	"github.com/ayusman/nritya/internal/version"
)

// Recognizer switches gesture recognition and reloads the catalog.
type Recognizer interface {
	IsEnabled() bool
	SetEnabled(enabled bool) error
	LoadGestures() error
}

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Engine     *engine.Engine
	Recognizer Recognizer
	Plugins    *plugin.Manager
	Metrics    http.Handler
}

// Server represents the HTTP server for the nritya daemon.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventHub

	mu      sync.Mutex
	httpSrv *http.Server
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

	if s.config.Engine != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)

		players := api.NewPlayerHandler(s.config.Engine)
		s.mux.Handle("/api/players", players)
		s.mux.Handle("/api/players/", players)

		s.events = NewEventHub(s.config.Engine.Events())
		s.mux.Handle("/api/events", s.events)
	}

	if s.config.Recognizer != nil {
		s.mux.HandleFunc("/api/recognition", s.handleRecognition)
		s.mux.HandleFunc("/api/reload", s.handleReload)
	}

	// Register catalog API handlers if Store is configured
	if s.config.Store != nil {
		gestures := api.NewGestureHandler(s.config.Store, s.reload)
		s.mux.Handle("/api/gestures", gestures)
		s.mux.Handle("/api/gestures/", gestures)

		references := api.NewReferenceHandler(s.config.Store, s.reload)
		s.mux.Handle("/api/references", references)
		s.mux.Handle("/api/references/", references)

		s.mux.Handle("/api/catalog", api.NewCatalogHandler(s.config.Store, s.reload))

		actions := api.NewActionHandler(s.config.Store, s.config.Plugins)
		s.mux.Handle("/api/actions", actions)
		s.mux.Handle("/api/actions/", actions)
	}

	if s.config.Plugins != nil {
		s.mux.Handle("/api/plugins", api.NewPluginHandler(s.config.Plugins))
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// reload pushes catalog changes into the running engine.
func (s *Server) reload() {
	if s.config.Recognizer == nil {
		return
	}
	if err := s.config.Recognizer.LoadGestures(); err != nil {
		log.Printf("Failed to reload gestures: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"version": version.String(),
	})
}

type statusResponse struct {
	engine.Status
	Enabled bool `json:"enabled"`
}

// handleStatus handles GET /api/status: the engine state with every
// player's gesture progress.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{Status: s.config.Engine.Status()}
	if s.config.Recognizer != nil {
		resp.Enabled = s.config.Recognizer.IsEnabled()
	} else {
		resp.Enabled = resp.Running
	}
	writeJSON(w, http.StatusOK, resp)
}

type recognitionRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleRecognition handles GET and PUT /api/recognition.
func (s *Server) handleRecognition(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req recognitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
			return
		}
		if err := s.config.Recognizer.SetEnabled(*req.Enabled); err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.config.Recognizer.IsEnabled()})
}

// handleReload handles POST /api/reload.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.config.Recognizer.LoadGestures(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events returns the WebSocket event hub, or nil without an engine.
func (s *Server) Events() *EventHub {
	return s.events
}

// ListenAndServe starts the HTTP server on the given address. It returns nil
// after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpSrv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown disconnects event clients and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.events != nil {
		s.events.Close()
	}

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
