package models

import "time"

// DefaultProfilePicture is used when sign-up does not include an avatar.
const DefaultProfilePicture = "/asu-logo.png"

// Profile is the public record for an identity-provider account.
type Profile struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	FullName       *string    `json:"full_name"`
	ProfilePicture string     `json:"profile_picture"`
	Interests      []string   `json:"interests"`
	WantedItems    []string   `json:"wanted_items"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastLogin      *time.Time `json:"last_login"`
}

// ProfileSummary is the projection embedded in listings and conversations.
type ProfileSummary struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

// ProfileUpdate holds the user-editable profile fields.
type ProfileUpdate struct {
	Username    *string  `json:"username,omitempty"`
	FullName    *string  `json:"full_name,omitempty"`
	Interests   []string `json:"interests,omitempty"`
	WantedItems []string `json:"wanted_items,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.FullName == nil && u.Interests == nil && u.WantedItems == nil
}

// User is the identity-provider account behind a session.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Role         string     `json:"role,omitempty"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Session is an authenticated session issued by the identity provider.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}
