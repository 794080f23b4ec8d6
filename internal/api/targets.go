package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/supervisor"
)

// handleListTargets returns every target's status, sorted by name.
func (s *Server) handleListTargets(w http.ResponseWriter, _ *http.Request) {
	names := s.sup.Targets()
	out := make([]supervisor.TargetStatus, 0, len(names))
	for _, name := range names {
		if st, ok := s.sup.Status(name); ok {
			out = append(out, st)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"targets": out,
		"count":   len(out),
	})
}

// handleGetTarget returns one target's status.
func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	st, ok := s.sup.Status(name)
	if !ok {
		writeNotFound(w, "target not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCheckTarget pings one target now. A failed ping is still a 200; the
// result carries the error.
func (s *Server) handleCheckTarget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res, err := s.sup.Check(r.Context(), name)
	if err != nil {
		writeSupervisorError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"target":               res.Target,
		"status":               res.Status,
		"latency_ms":           float64(res.Latency.Microseconds()) / 1000,
		"consecutive_failures": res.ConsecutiveFailures,
		"error":                supervisor.Describe(res.Err),
		"checked_at":           res.CheckedAt,
	})
}

// handleResetTarget revives a target's monitor and drops idle connections.
func (s *Server) handleResetTarget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.sup.Reset(r.Context(), name); err != nil {
		writeSupervisorError(w, err)
		return
	}

	s.logger.Info("target reset via API",
		"target", name,
		"subject", subjectFrom(r.Context()),
	)
	st, _ := s.sup.Status(name)
	writeJSON(w, http.StatusOK, st)
}
