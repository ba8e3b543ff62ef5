package supabase

import (
	"context"
	"time"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/models"
	client "github.com/Vasu1712/campus-marketplace/internal/supabase"
)

const profilesTable = "profiles"

type profileRow struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Username       string   `json:"username"`
	FullName       *string  `json:"full_name,omitempty"`
	ProfilePicture string   `json:"profile_picture"`
	Interests      []string `json:"interests"`
	WantedItems    []string `json:"wanted_items"`
}

type ProfileStore struct {
	db *client.DatabaseClient
}

func NewProfileStore(db *client.DatabaseClient) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	row := profileRow{
		ID:             p.ID,
		Email:          p.Email,
		Username:       p.Username,
		FullName:       p.FullName,
		ProfilePicture: p.ProfilePicture,
		Interests:      nonNil(p.Interests),
		WantedItems:    nonNil(p.WantedItems),
	}
	var rows []models.Profile
	if err := s.db.From(profilesTable).Insert(row).ExecuteInto(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.KindTransport, "insert returned no rows")
	}
	return &rows[0], nil
}

func (s *ProfileStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var rows []models.Profile
	if err := s.db.From(profilesTable).Eq("id", id).Limit(1).ExecuteInto(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("Profile not found")
	}
	return &rows[0], nil
}

func (s *ProfileStore) UpdateProfile(ctx context.Context, id string, u models.ProfileUpdate) (*models.Profile, error) {
	patch := map[string]interface{}{"updated_at": time.Now().UTC()}
	if u.Username != nil {
		patch["username"] = *u.Username
	}
	if u.FullName != nil {
		patch["full_name"] = *u.FullName
	}
	if u.Interests != nil {
		patch["interests"] = u.Interests
	}
	if u.WantedItems != nil {
		patch["wanted_items"] = u.WantedItems
	}
	return s.patch(ctx, id, patch)
}

// TouchLastLogin records the sign-in time carried by a SIGNED_IN event.
func (s *ProfileStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.patch(ctx, userID, map[string]interface{}{"last_login": at.UTC()})
	return err
}

func (s *ProfileStore) patch(ctx context.Context, id string, patch map[string]interface{}) (*models.Profile, error) {
	var rows []models.Profile
	if err := s.db.From(profilesTable).Update(patch).Eq("id", id).ExecuteInto(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("Profile not found")
	}
	return &rows[0], nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
