package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/aim"
	"github.com/bryanchriswhite/FocusTracker/internal/config"
	"github.com/bryanchriswhite/FocusTracker/internal/display"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
	"github.com/bryanchriswhite/FocusTracker/internal/output"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Session describes the running tracking session.
type Session struct {
	Backend string         `json:"backend"`
	Kind    string         `json:"kind"`
	Window  string         `json:"window,omitempty"`
	Region  display.Region `json:"region"`
	Started time.Time      `json:"started"`
}

// StatsSource reports loop counters.
type StatsSource interface {
	Stats() aim.Stats
}

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	hub       *Hub
	stats     StatsSource
	preview   *output.MJPEGOutput
	configMgr *config.Manager
	session   Session
	upgrader  websocket.Upgrader
	http      *http.Server
}

// NewServer creates a new API server. preview and configMgr may be nil.
func NewServer(session Session, hub *Hub, stats StatsSource, preview *output.MJPEGOutput, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		hub:       hub,
		stats:     stats,
		preview:   preview,
		configMgr: configMgr,
		session:   session,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool, any origin
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/track/current", s.handleCurrentTrack).Methods("GET")
	api.HandleFunc("/track/stream", s.handleTrackStream)

	if s.preview != nil {
		api.HandleFunc("/preview/stats", s.preview.GetStatsHandler()).Methods("GET")
		s.router.HandleFunc("/stream", s.preview.GetHTTPHandler()).Methods("GET")
		s.router.HandleFunc("/", s.preview.GetViewerHandler()).Methods("GET")
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.WithComponent("api").Info().Str("addr", "http://localhost"+addr).Msg("Starting server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Session     Session   `json:"session"`
	Uptime      string    `json:"uptime"`
	Loop        aim.Stats `json:"loop"`
	Subscribers int       `json:"subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Session:     s.session,
		Subscribers: s.hub.Subscribers(),
	}
	if !s.session.Started.IsZero() {
		resp.Uptime = time.Since(s.session.Started).Round(time.Second).String()
	}
	if s.stats != nil {
		resp.Loop = s.stats.Stats()
	}
	writeJSON(w, resp)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "configuration not available", http.StatusNotFound)
		return
	}
	cfg, err := s.configMgr.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, cfg)
}

func (s *Server) handleCurrentTrack(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.hub.Last()
	if !ok {
		http.Error(w, "no frame processed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, msg)
}

func (s *Server) handleTrackStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.hub.Subscribe()
	defer s.hub.Unsubscribe(updates)

	// Reader goroutine notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}
