package report

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts POST /api/report-issue behind the per-IP limiter.
func RegisterRoutes(r *mux.Router, h *Handler, limit mux.MiddlewareFunc) {
	var handler http.Handler = http.HandlerFunc(h.ReportIssue)
	if limit != nil {
		handler = limit(handler)
	}
	r.Handle("/api/report-issue", handler).Methods(http.MethodPost)
}
