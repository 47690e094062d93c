// Package server implements the showroom HTTP server and its bearer-token
// auth.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/showroom/config"
	"github.com/GoCodeAlone/showroom/events"
	"github.com/GoCodeAlone/showroom/server/api"
	"github.com/GoCodeAlone/showroom/server/ws"
)

// Server is the showroom HTTP server.
type Server struct {
	cfg      config.ServerConfig
	mux      *http.ServeMux
	httpSrv  *http.Server
	logger   *zap.Logger
	handlers *api.Handlers
	hub      *ws.Hub

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string
}

// New creates a Server serving h. Routes are registered immediately.
func New(cfg config.ServerConfig, h *api.Handlers, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if h.Logger == nil {
		h.Logger = logger
	}
	if h.StartAt.IsZero() {
		h.StartAt = time.Now()
	}
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		logger:   logger,
		handlers: h,
		hub:      ws.NewHub(logger),
	}
	s.registerRoutes()
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// AttachBus streams every event published on bus to SSE clients.
func (s *Server) AttachBus(bus events.Bus) (detach func()) {
	return s.hub.Attach(bus)
}

// Start begins listening. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.cfg.Addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/status", s.handlers.StatusHandler())

	// SSE: token passed as a query parameter because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API, wrapped in auth middleware
	apiMux := http.NewServeMux()
	s.handlers.RegisterRoutes(apiMux)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleSSE authenticates the stream and hands it to the hub.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if _, err := verifyToken(s.jwtSecret(), token); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.hub.ServeSSE(w, r)
}
