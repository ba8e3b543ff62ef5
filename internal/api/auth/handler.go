package auth

import (
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/httputil"
	"github.com/Vasu1712/campus-marketplace/internal/middleware"
	"github.com/Vasu1712/campus-marketplace/internal/models"
	"github.com/Vasu1712/campus-marketplace/internal/session"
)

const maxAvatarSize = 2 << 20

// callbackPage hands the URL fragment tokens to the browser app at the site root.
const callbackPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Auth</title></head>
<body>
<script>
  window.location.replace('/');
</script>
</body></html>`

type Handler struct {
	Session *session.Service
	Log     logrus.FieldLogger
}

// Callback serves the OAuth landing page. The identity provider puts the
// session in the URL fragment, which only the browser can read.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, callbackPage)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// SignUp accepts JSON or a multipart form with an optional "avatar" file.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in session.SignUpInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
			httputil.WriteError(w, apperr.Validation("invalid form: %v", err))
			return
		}
		in.Email = r.FormValue("email")
		in.Password = r.FormValue("password")
		in.Username = r.FormValue("username")
		avatar, err := readAvatar(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		in.Avatar = avatar
	} else {
		var c credentials
		if err := httputil.DecodeJSON(r, &c); err != nil {
			httputil.WriteError(w, err)
			return
		}
		in.Email, in.Password, in.Username = c.Email, c.Password, c.Username
	}

	res, err := h.Session.SignUp(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func readAvatar(r *http.Request) (*session.Avatar, error) {
	f, fh, err := r.FormFile("avatar")
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Validation("invalid avatar: %v", err)
	}
	defer f.Close()
	if fh.Size > maxAvatarSize {
		return nil, apperr.Validation("avatar must be smaller than 2MB")
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Validation("invalid avatar: %v", err)
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &session.Avatar{Filename: fh.Filename, ContentType: ct, Data: data}, nil
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := httputil.DecodeJSON(r, &c); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sess, err := h.Session.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		httputil.WriteError(w, apperr.Unauthenticated("Authentication required"))
		return
	}
	if err := h.Session.SignOut(r.Context(), token); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sess, err := h.Session.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sess)
}

// ResetPassword always answers 202 once the provider accepted the request.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.Session.ResetPassword(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (h *Handler) OAuth(w http.ResponseWriter, r *http.Request) {
	target, err := h.Session.OAuthURL(mux.Vars(r)["provider"], r.URL.Query().Get("redirect_to"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type meResponse struct {
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	profile, err := h.Session.GetProfile(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, meResponse{User: user, Profile: profile})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	var u models.ProfileUpdate
	if err := httputil.DecodeJSON(r, &u); err != nil {
		httputil.WriteError(w, err)
		return
	}
	profile, err := h.Session.UpdateProfile(r.Context(), user.ID, u)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}
