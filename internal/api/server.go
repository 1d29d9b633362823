// Package api exposes the accumulated dataset over HTTP: keyset-paginated
// list endpoints plus item lookups, read only.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/openjustice/courtwatch/internal/store"
)

// Server wraps the HTTP listener.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

func NewServer(addr string, st store.Store, log *zap.Logger) *Server {
	h := NewHandler(st, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/regions", h.ListRegions)
		r.Route("/courts", func(r chi.Router) {
			r.Get("/", h.ListCourts)
			r.Get("/{id}", h.GetCourt)
			r.Get("/{id}/history", h.CourtHistory)
		})
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Get("/{id}", h.GetSession)
			r.Get("/{id}/history", h.SessionHistory)
		})
		r.Route("/cases", func(r chi.Router) {
			r.Get("/", h.ListCases)
			r.Get("/{id}", h.GetCase)
			r.Get("/{id}/history", h.CaseHistory)
		})
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler { return s.srv.Handler }

func (s *Server) Start() error {
	s.log.Info("api listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
