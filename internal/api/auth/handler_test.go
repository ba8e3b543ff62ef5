package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/campus-marketplace/internal/middleware"
	"github.com/Vasu1712/campus-marketplace/internal/models"
	"github.com/Vasu1712/campus-marketplace/internal/session"
	"github.com/Vasu1712/campus-marketplace/internal/storage/memory"
	"github.com/Vasu1712/campus-marketplace/internal/supabase"
)

type fakeIDP struct {
	user *models.User
}

func (f *fakeIDP) SignUp(_ context.Context, email, _ string, _ map[string]interface{}) (*supabase.SignUpResult, error) {
	return &supabase.SignUpResult{User: &models.User{ID: "u1", Email: email}}, nil
}

func (f *fakeIDP) SignInWithPassword(_ context.Context, email, password string) (*models.Session, error) {
	if password != "secret" {
		return nil, &supabase.Error{Message: "Invalid login credentials", StatusCode: http.StatusBadRequest}
	}
	return &models.Session{AccessToken: "token-u1", TokenType: "bearer", User: f.user}, nil
}

func (f *fakeIDP) RefreshToken(context.Context, string) (*models.Session, error) {
	return &models.Session{AccessToken: "token-u1", User: f.user}, nil
}

func (f *fakeIDP) GetUser(_ context.Context, token string) (*models.User, error) {
	if token != "token-u1" {
		return nil, &supabase.Error{Message: "invalid JWT", StatusCode: http.StatusUnauthorized}
	}
	return f.user, nil
}

func (f *fakeIDP) SignOut(context.Context, string) error { return nil }

func (f *fakeIDP) ResetPasswordForEmail(context.Context, string, string) error { return nil }

func (f *fakeIDP) AuthorizeURL(provider, redirectTo string) string {
	return "https://x.supabase.co/auth/v1/authorize?provider=" + provider + "&redirect_to=" + redirectTo
}

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	idp := &fakeIDP{user: &models.User{ID: "u1", Email: "sparky@asu.edu"}}
	svc := session.NewService(idp, memory.NewProfileStore(),
		session.WithCallbackURL("http://127.0.0.1:5173/api/auth/callback"))
	r := mux.NewRouter()
	RegisterRoutes(r, &Handler{Session: svc}, middleware.RequireAuth(svc))
	return r
}

func send(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCallbackRedirectsToRoot(t *testing.T) {
	rec := send(newRouter(t), http.MethodGet, "/api/auth/callback#access_token=x", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "window.location.replace('/')")
}

func TestOAuthRedirect(t *testing.T) {
	rec := send(newRouter(t), http.MethodGet, "/api/v1/auth/oauth/Google", "", "")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t,
		"https://x.supabase.co/auth/v1/authorize?provider=google&redirect_to=http://127.0.0.1:5173/api/auth/callback",
		rec.Header().Get("Location"))
}

func TestSignUpLoginAndProfile(t *testing.T) {
	r := newRouter(t)

	rec := send(r, http.MethodPost, "/api/v1/auth/signup", "", `{"email":"sparky@asu.edu","password":"secret","username":"sparky"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(r, http.MethodPost, "/api/v1/auth/login", "", `{"email":"sparky@asu.edu","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(r, http.MethodPost, "/api/v1/auth/login", "", `{"email":"sparky@asu.edu","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "token-u1", sess.AccessToken)

	rec = send(r, http.MethodGet, "/api/v1/auth/me", sess.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "sparky", me.Profile.Username)
	assert.Equal(t, models.DefaultProfilePicture, me.Profile.ProfilePicture)

	rec = send(r, http.MethodPatch, "/api/v1/profile", sess.AccessToken, `{"interests":["Textbooks","textbooks"," Bikes "]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(r, http.MethodGet, "/api/v1/auth/me", "bogus", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRequiresToken(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, http.StatusUnauthorized, send(r, http.MethodPost, "/api/v1/auth/logout", "", "").Code)
	assert.Equal(t, http.StatusNoContent, send(r, http.MethodPost, "/api/v1/auth/logout", "token-u1", "").Code)
}
