// Package session wraps the hosted identity provider: sign-up with profile
// creation, password and OAuth sign-in, token verification and profile edits.
// State changes are published on an explicit Notifier.
package session

import (
	"context"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/logging"
	"github.com/Vasu1712/campus-marketplace/internal/models"
	"github.com/Vasu1712/campus-marketplace/internal/supabase"
)

// IdentityProvider is the subset of the GoTrue client the facade uses.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*supabase.SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.Session, error)
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
	SignOut(ctx context.Context, accessToken string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	AuthorizeURL(provider, redirectTo string) string
}

// ProfileStore persists profiles. Get and Update return an apperr NotFound
// error for unknown ids.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, u models.ProfileUpdate) (*models.Profile, error)
}

type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error
	PublicURL(bucket, path string) string
}

type Avatar struct {
	Filename    string
	ContentType string
	Data        []byte
}

type SignUpInput struct {
	Email    string
	Password string
	Username string
	Avatar   *Avatar
}

type SignUpResult struct {
	User    *models.User    `json:"user"`
	Session *models.Session `json:"session,omitempty"`
	Profile *models.Profile `json:"profile"`
}

type Service struct {
	idp          IdentityProvider
	profiles     ProfileStore
	avatars      ObjectStore
	avatarBucket string
	verifier     Verifier
	notifier     *Notifier
	callbackURL  string
	log          *logrus.Entry
}

type Option func(*Service)

// WithJWTSecret verifies access tokens locally before asking the provider.
func WithJWTSecret(secret string) Option {
	return func(s *Service) {
		if secret != "" {
			s.verifier = chain{NewJWTVerifier(secret), RemoteVerifier{idp: s.idp}}
		}
	}
}

func WithAvatars(objects ObjectStore, bucket string) Option {
	return func(s *Service) {
		s.avatars = objects
		s.avatarBucket = bucket
	}
}

func WithNotifier(n *Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithCallbackURL sets the default OAuth redirect target.
func WithCallbackURL(u string) Option {
	return func(s *Service) { s.callbackURL = u }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = logging.Component(log, "session") }
}

func NewService(idp IdentityProvider, profiles ProfileStore, opts ...Option) *Service {
	s := &Service{
		idp:      idp,
		profiles: profiles,
		verifier: RemoteVerifier{idp: idp},
		log:      logging.Component(nil, "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUp registers the account, stores the optional avatar and creates the profile row.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, apperr.Validation("a valid email is required")
	}
	if in.Password == "" {
		return nil, apperr.Validation("password is required")
	}
	if in.Username == "" {
		return nil, apperr.Validation("username is required")
	}

	res, err := s.idp.SignUp(ctx, in.Email, in.Password, map[string]interface{}{"username": in.Username})
	if err != nil {
		return nil, classifyAuth(err, "Error signing up")
	}
	if res.User == nil || res.User.ID == "" {
		return nil, apperr.New(apperr.KindTransport, "Error signing up: no user returned")
	}
	user := res.User

	// Writes below run as the new user when a session was issued.
	if res.Session != nil {
		ctx = supabase.WithAccessToken(ctx, res.Session.AccessToken)
	}

	picture := models.DefaultProfilePicture
	if in.Avatar != nil && len(in.Avatar.Data) > 0 && s.avatars != nil {
		path := avatarPath(user.ID, in.Avatar.Filename)
		if err := s.avatars.Upload(ctx, s.avatarBucket, path, in.Avatar.Data, in.Avatar.ContentType, true); err != nil {
			return nil, apperr.Wrap(err, "Error uploading profile picture")
		}
		picture = s.avatars.PublicURL(s.avatarBucket, path)
	}

	profile, err := s.profiles.CreateProfile(ctx, &models.Profile{
		ID:             user.ID,
		Email:          in.Email,
		Username:       in.Username,
		ProfilePicture: picture,
		Interests:      []string{},
		WantedItems:    []string{},
	})
	if err != nil {
		return nil, apperr.Wrap(err, "Error creating profile")
	}

	s.log.WithField("user_id", user.ID).Info("user signed up")
	if res.Session != nil {
		s.emit(SignedIn, user, res.Session.AccessToken)
	}
	return &SignUpResult{User: user, Session: res.Session, Profile: profile}, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	sess, err := s.idp.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, classifyAuth(err, "Error signing in")
	}
	s.emit(SignedIn, sess.User, sess.AccessToken)
	return sess, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "" {
		return nil, apperr.Validation("refresh_token is required")
	}
	sess, err := s.idp.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, classifyAuth(err, "Error refreshing session")
	}
	s.emit(TokenRefreshed, sess.User, sess.AccessToken)
	return sess, nil
}

func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	user, _ := s.verifier.Verify(ctx, accessToken)
	if err := s.idp.SignOut(ctx, accessToken); err != nil {
		return classifyAuth(err, "Error signing out")
	}
	s.emit(SignedOut, user, "")
	return nil
}

// ResetPassword sends a recovery email that lands back on the site.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("email is required")
	}
	if err := s.idp.ResetPasswordForEmail(ctx, email, s.callbackURL); err != nil {
		return classifyAuth(err, "Error sending password reset")
	}
	return nil
}

// OAuthURL returns the provider login URL. redirectTo defaults to the callback page.
func (s *Service) OAuthURL(provider, redirectTo string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "", apperr.Validation("provider is required")
	}
	if redirectTo == "" {
		redirectTo = s.callbackURL
	}
	return s.idp.AuthorizeURL(provider, redirectTo), nil
}

// Authenticate resolves an access token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("Authentication required")
	}
	user, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.log.WithError(err).Debug("token rejected")
		return nil, apperr.Unauthenticated("Invalid or expired session")
	}
	return user, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Error fetching profile")
	}
	return p, nil
}

// UpdateProfile edits the caller's own profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, u models.ProfileUpdate) (*models.Profile, error) {
	if u.Empty() {
		return nil, apperr.Validation("no fields to update")
	}
	if u.Username != nil {
		name := strings.TrimSpace(*u.Username)
		if name == "" {
			return nil, apperr.Validation("username is required")
		}
		u.Username = &name
	}
	if u.Interests != nil {
		u.Interests = normalizeList(u.Interests)
	}
	if u.WantedItems != nil {
		u.WantedItems = normalizeList(u.WantedItems)
	}
	p, err := s.profiles.UpdateProfile(ctx, userID, u)
	if err != nil {
		return nil, apperr.Wrap(err, "Error updating profile")
	}
	s.emit(UserUpdated, &models.User{ID: userID, Email: p.Email}, supabase.AccessTokenFromContext(ctx))
	return p, nil
}

func (s *Service) emit(t EventType, user *models.User, accessToken string) {
	if s.notifier == nil || user == nil {
		return
	}
	s.notifier.Emit(Event{Type: t, UserID: user.ID, Email: user.Email, AccessToken: accessToken})
}

// classifyAuth maps provider rejections of credentials to Unauthenticated and
// everything else to a labelled transport error.
func classifyAuth(err error, label string) error {
	switch supabase.StatusCode(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return &apperr.Error{Kind: apperr.KindUnauthenticated, Message: label + ": " + err.Error(), Err: err}
	case http.StatusTooManyRequests:
		return &apperr.Error{Kind: apperr.KindValidation, Message: label + ": " + err.Error(), Err: err}
	}
	return apperr.Wrap(err, label)
}

// normalizeList trims entries and drops blanks and duplicates.
func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func avatarPath(userID, filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = "png"
	}
	return userID + "." + ext
}

// LoginRecorder stores the time of a user's latest sign-in.
type LoginRecorder interface {
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// TrackLastLogin subscribes a handler that records every SIGNED_IN event,
// writing with the event's access token.
func TrackLastLogin(n *Notifier, rec LoginRecorder, log logrus.FieldLogger) *Subscription {
	entry := logging.Component(log, "session")
	return n.Subscribe(func(e Event) {
		if e.Type != SignedIn || e.UserID == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if e.AccessToken != "" {
			ctx = supabase.WithAccessToken(ctx, e.AccessToken)
		}
		if err := rec.TouchLastLogin(ctx, e.UserID, e.At); err != nil {
			entry.WithError(err).WithField("user_id", e.UserID).Warn("failed to record last login")
		}
	})
}
