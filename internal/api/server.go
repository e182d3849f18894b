// Package api provides the HTTP API server for Kai.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/intent"
	"github.com/kaiassist/kai/internal/logging"
	"github.com/kaiassist/kai/internal/memory"
	"github.com/kaiassist/kai/internal/personality"
	"github.com/kaiassist/kai/internal/scheduler"
	"github.com/kaiassist/kai/internal/tasks"
)

// StatsSource reports scheduler statistics
type StatsSource interface {
	GetStats() scheduler.Stats
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	// Components
	intents *intent.Router
	tasks   *tasks.Service
	memory  *memory.Log
	state   *personality.State
	sched   StatsSource
	wsHub   *WebSocketHub

	startedAt time.Time
}

// Config for the server
type Config struct {
	Host      string
	Port      int
	Router    *intent.Router
	Tasks     *tasks.Service
	Memory    *memory.Log
	State     *personality.State
	Scheduler StatsSource // Optional

	RequestTimeout time.Duration
}

// New creates a new API server
func New(cfg Config) (*Server, error) {
	if cfg.Router == nil || cfg.Tasks == nil || cfg.Memory == nil || cfg.State == nil {
		return nil, fmt.Errorf("%w: server needs router, tasks, memory and state", core.ErrMissingRequired)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		intents:   cfg.Router,
		tasks:     cfg.Tasks,
		memory:    cfg.Memory,
		state:     cfg.State,
		sched:     cfg.Scheduler,
		wsHub:     NewWebSocketHub(),
		startedAt: time.Now(),
	}

	s.setupRouter(cfg.RequestTimeout)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRouter configures all routes
func (s *Server) setupRouter(timeout time.Duration) {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		// Command channels
		r.Post("/voice", s.handleVoice)
		r.Post("/command", s.handleCommand)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/tasks", s.handleGetTasks)
			r.Get("/memory", s.handleGetMemory)
			r.Get("/mode", s.handleGetMode)
			r.Put("/mode", s.handleSetMode)
			r.Get("/stats", s.handleGetStats)
		})
	})

	// WebSocket connections outlive the request timeout
	r.Get("/api/v1/ws", s.handleWebSocket)

	s.router = r
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves HTTP until Stop is called. It returns nil after a clean stop.
func (s *Server) Start() error {
	logging.Info("API server starting on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server and closes WebSocket clients
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.wsHub.Close()
	return err
}

// Broadcast sends a message to all WebSocket clients
func (s *Server) Broadcast(msgType string, data interface{}) {
	s.wsHub.Broadcast(WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// --- Response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// requestLogger logs each request through the structured logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logging.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}
