package auth

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the OAuth callback page and the session endpoints.
func RegisterRoutes(r *mux.Router, h *Handler, requireAuth mux.MiddlewareFunc) {
	r.HandleFunc("/api/auth/callback", h.Callback).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/auth/signup", h.SignUp).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/refresh", h.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/reset-password", h.ResetPassword).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/oauth/{provider}", h.OAuth).Methods(http.MethodGet)

	r.Handle("/api/v1/auth/me", requireAuth(http.HandlerFunc(h.Me))).Methods(http.MethodGet)
	r.Handle("/api/v1/profile", requireAuth(http.HandlerFunc(h.UpdateProfile))).Methods(http.MethodPatch)
}
