// Package api exposes the isochrone and spatial analysis endpoints over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/config"
	"github.com/sells-group/isolysis/internal/spatial"
	"github.com/sells-group/isolysis/internal/store"
	"github.com/sells-group/isolysis/pkg/isoline"
)

// Server holds the wiring for the HTTP API. The store is optional; without
// one, analyses are computed but not persisted.
type Server struct {
	store           store.Store
	providers       map[string]isoline.Provider
	defaultProvider string
	analysisOpts    spatial.Options
	allowedOrigins  []string
	concurrency     int
	bandInterval    float64
}

// Option configures a Server.
type Option func(*Server)

// WithStore attaches a persistence backend.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithBandInterval sets the default band spacing in hours for isochrone
// computation.
func WithBandInterval(hours float64) Option {
	return func(s *Server) {
		if hours > 0 {
			s.bandInterval = hours
		}
	}
}

// NewServer creates a Server from configuration and a provider registry.
func NewServer(cfg *config.Config, providers map[string]isoline.Provider, opts ...Option) *Server {
	s := &Server{
		providers:       providers,
		defaultProvider: cfg.Providers.Default,
		analysisOpts: spatial.Options{
			MinOverlap:      cfg.Analysis.MinOverlap,
			MaxCombinations: cfg.Analysis.MaxCombinations,
			ProductionKey:   cfg.Analysis.ProductionKey,
		},
		allowedOrigins: cfg.Server.AllowedOrigins,
		concurrency:    cfg.Providers.Concurrency,
		bandInterval:   isoline.BandInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/isochrones", s.handleIsochrones)
		r.Get("/analyses", s.handleListAnalyses)
		r.Get("/analyses/{id}", s.handleGetAnalysis)
	})

	return r
}

// requestLogger logs each request with zap after completion.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var available, unavailable []string
	for name, p := range s.providers {
		if p.Available() {
			available = append(available, name)
		} else {
			unavailable = append(unavailable, name)
		}
	}
	sort.Strings(available)
	sort.Strings(unavailable)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "healthy",
		"available_providers":   available,
		"unavailable_providers": unavailable,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
