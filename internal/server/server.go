// Package server hosts the administrative HTTP API: health, handler
// listing, session status, and the routes the feature packages mount.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zidanhm/switchboard/internal/dispatch"
	"github.com/zidanhm/switchboard/internal/handler"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server is the admin API server. Feature packages register their own
// routes on Router().
type Server struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	router     chi.Router
	httpServer *http.Server
}

// New creates an admin server over the given dispatcher.
func New(cfg Config, dispatcher *dispatch.Dispatcher) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api/handlers", s.handleListHandlers)
	r.Get("/api/sessions/{user}", s.handleSessionStatus)

	// Access and usage routes are registered by their packages via
	// RegisterRoutes on Router().

	return r
}

// handleListHandlers returns every loaded handler's info.
func (s *Server) handleListHandlers(w http.ResponseWriter, r *http.Request) {
	reg := s.dispatcher.Registry()
	infos := make([]handler.Info, 0, len(reg.Names()))
	for _, name := range reg.Names() {
		if h, ok := reg.Get(name); ok {
			infos = append(infos, h.Info())
		}
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleSessionStatus returns a user's current handler, if any.
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	current := s.dispatcher.Current(r.Context(), userID)
	resp := map[string]any{
		"user_id": userID,
		"handler": nil,
	}
	if current != nil {
		resp["handler"] = current.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: writing response: %v", err)
	}
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("switchboard admin API listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
