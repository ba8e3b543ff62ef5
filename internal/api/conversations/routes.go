package conversations

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the conversation endpoints. All of them require a session;
// the websocket reads its token from the access_token query parameter.
func RegisterRoutes(r *mux.Router, h *Handler, requireAuth mux.MiddlewareFunc) {
	private := func(fn http.HandlerFunc) http.Handler { return requireAuth(fn) }

	r.Handle("/api/v1/conversations", private(h.List)).Methods(http.MethodGet)
	r.Handle("/api/v1/conversations", private(h.Create)).Methods(http.MethodPost)
	r.Handle("/api/v1/conversations/{id}", private(h.Get)).Methods(http.MethodGet)
	r.Handle("/api/v1/conversations/{id}/messages", private(h.SendMessage)).Methods(http.MethodPost)
	r.Handle("/ws/conversations/{id}", private(h.ServeWS)).Methods(http.MethodGet)
}
