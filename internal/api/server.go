package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/panoflat/panoflat/internal/extract"
	"github.com/panoflat/panoflat/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes extraction run status over HTTP: a JSON progress
// snapshot, a websocket progress stream, and prometheus metrics. It
// serves status only; frames never leave the output directory.
type Server struct {
	router   *mux.Router
	tracker  *extract.Tracker
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// NewServer creates a status server for the given progress tracker
func NewServer(tracker *extract.Tracker) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		tracker: tracker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local observability surface
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
	api.HandleFunc("/progress", s.handleProgress).Methods("GET")
	api.HandleFunc("/progress/stream", s.handleProgressStream)

	s.router.Handle("/metrics", promhttp.Handler())
}

// Start serves until Shutdown is called
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	logger.WithComponent("api").Info().
		Str("addr", addr).
		Msg("Status server listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler exposes the route tree (used by tests)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"done":    p.Done,
		"total":   p.Total,
		"percent": p.Percent(),
	})
}

func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.tracker.Subscribe()
	defer s.tracker.Unsubscribe(updates)

	// Send the current snapshot first
	if err := conn.WriteJSON(s.tracker.Snapshot()); err != nil {
		return
	}

	// Stream updates until the run ends or the client goes away
	for p := range updates {
		if err := conn.WriteJSON(p); err != nil {
			return
		}
	}
}
