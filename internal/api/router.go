package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/library-core/internal/docs"
)

// documentationPath is where the API description is served.
const documentationPath = "/documentation"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.rateLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// API description (static, no auth)
	r.Mount(documentationPath, docs.Handler())

	r.Route("/api", func(r chi.Router) {
		// Health and metrics (no auth required for basic monitoring)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Token exchange
		r.Post("/auth/token", s.handleIssueToken)

		// Everything below may require a bearer token for writes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			mountResource(r, s, s.store.Books())
			mountResource(r, s, s.store.Members())
			mountResource(r, s, s.store.Loans())

			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
			r.Get("/audit", s.handleListAuditLogs)

			r.Get(eventsPath(s.wsCfg), s.handleWebSocket)
		})
	})

	return r
}
