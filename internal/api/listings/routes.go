package listings

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the listing endpoints. Reads are public; writes and
// the caller's own listings go through requireAuth.
func RegisterRoutes(r *mux.Router, h *Handler, requireAuth mux.MiddlewareFunc) {
	private := func(fn http.HandlerFunc) http.Handler { return requireAuth(fn) }

	r.HandleFunc("/api/v1/listings", h.List).Methods(http.MethodGet)
	r.Handle("/api/v1/listings", private(h.Create)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/listings/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/listings/recent", h.Recent).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/listings/tags", h.Tags).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/listings/{id}", h.Get).Methods(http.MethodGet)
	r.Handle("/api/v1/listings/{id}", private(h.Update)).Methods(http.MethodPatch, http.MethodPut)
	r.Handle("/api/v1/listings/{id}", private(h.Delete)).Methods(http.MethodDelete)
	r.Handle("/api/v1/listings/{id}/conversation", private(h.Contact)).Methods(http.MethodPost)
	r.Handle("/api/v1/me/listings", private(h.Mine)).Methods(http.MethodGet)
}
