package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Server runs the HTTP/websocket status API.
type Server struct {
	provider StatusProvider
	events   <-chan Event
	hub      *Hub
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a status server listening on addr. events may be nil if
// no stream is wanted.
func NewServer(addr string, provider StatusProvider, events <-chan Event, logger *slog.Logger) *Server {
	log := logger.With("component", "api-server")
	hub := NewHub(log)

	s := &Server{
		provider: provider,
		events:   events,
		hub:      hub,
		logger:   log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start runs the hub, the event consumer, and the HTTP listener. Blocks
// until Stop; call in a goroutine.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.consumeEvents()

	s.logger.Info("status server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) consumeEvents() {
	if s.events == nil {
		return
	}
	for evt := range s.events {
		s.hub.Broadcast(evt)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.provider.Status()); err != nil {
		s.logger.Error("failed to encode status", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}
