package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Vasu1712/campus-marketplace/internal/models"
)

// AuthClient talks to the GoTrue identity API.
type AuthClient struct {
	client *Client
}

// SignUpResult carries the new user and, when email confirmation is disabled,
// an active session.
type SignUpResult struct {
	User    *models.User
	Session *models.Session
}

// SignUp registers a user. data is stored as user metadata.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*SignUpResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := a.client.do(ctx, "auth", http.MethodPost, a.client.authURL+"/signup", body, nil)
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := decode(resp.body, &session); err != nil {
		return nil, err
	}
	if session.AccessToken != "" {
		return &SignUpResult{User: session.User, Session: &session}, nil
	}
	// Confirmation pending: the body is the bare user.
	var user models.User
	if err := decode(resp.body, &user); err != nil {
		return nil, err
	}
	return &SignUpResult{User: &user}, nil
}

func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	return a.token(ctx, "password", map[string]string{"email": email, "password": password})
}

func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	return a.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (a *AuthClient) token(ctx context.Context, grant string, payload map[string]string) (*models.Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := a.client.do(ctx, "auth", http.MethodPost, a.client.authURL+"/token?grant_type="+grant, body, nil)
	if err != nil {
		return nil, err
	}
	var session models.Session
	if err := decode(resp.body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetUser resolves the user behind accessToken.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	resp, err := a.client.do(WithAccessToken(ctx, accessToken), "auth", http.MethodGet, a.client.authURL+"/user", nil, nil)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := decode(resp.body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the refresh tokens of the session behind accessToken.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	_, err := a.client.do(WithAccessToken(ctx, accessToken), "auth", http.MethodPost, a.client.authURL+"/logout", nil, nil)
	return err
}

// ResetPasswordForEmail sends a recovery email. redirectTo may be empty.
func (a *AuthClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	u := a.client.authURL + "/recover"
	if redirectTo != "" {
		u += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	_, err = a.client.do(ctx, "auth", http.MethodPost, u, body, nil)
	return err
}

// AuthorizeURL is where the browser goes to start an OAuth login with provider.
func (a *AuthClient) AuthorizeURL(provider, redirectTo string) string {
	params := url.Values{}
	params.Set("provider", provider)
	if redirectTo != "" {
		params.Set("redirect_to", redirectTo)
	}
	return a.client.authURL + "/authorize?" + params.Encode()
}
