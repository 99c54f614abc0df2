package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and
// middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	if s.cfg.API.RateLimit.Enabled {
		r.Use(s.rateLimitMiddleware(s.cfg.API.RateLimit))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/suites", s.handleListSuites)
		r.Get("/suites/{suite}/runs/latest", s.handleLatestRun)
		r.Get("/suites/{suite}/series/{name}", s.handleSeries)
		r.Get("/export", s.handleExport)

		// Ingestion mutates history; it is the only authenticated
		// surface.
		r.Group(func(r chi.Router) {
			if s.cfg.API.Auth.Enabled {
				r.Use(s.requireBasicAuth)
			}

			r.Post("/suites/{suite}/runs", s.handleIngest)
		})
	})

	return r
}

// corsMiddleware builds the CORS handler from configured origins.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	origins := s.cfg.API.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})
}
