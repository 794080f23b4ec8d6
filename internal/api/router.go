package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/targets", func(r chi.Router) {
			r.Get("/", s.handleListTargets)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetTarget)
				r.Post("/check", s.handleCheckTarget)

				r.Group(func(r chi.Router) {
					r.Use(s.operatorMiddleware)
					r.Post("/reset", s.handleResetTarget)
				})
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports the service as up with a per-status target count.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	counts := make(map[string]int)
	for _, name := range s.sup.Targets() {
		st, ok := s.sup.Status(name)
		if !ok {
			continue
		}
		status := "unknown"
		if st.Health != nil {
			status = st.Health.Status
		}
		counts[status]++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"targets": counts,
	})
}
