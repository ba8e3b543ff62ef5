// Package memory keeps marketplace data in process memory. It backs local
// development (STORAGE_BACKEND=memory) and the access-layer tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/models"
)

type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]*models.Profile)}
}

func (s *ProfileStore) CreateProfile(_ context.Context, p *models.Profile) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return nil, apperr.Validation("profile %s already exists", p.ID)
	}
	now := time.Now().UTC()
	cp := *p
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.profiles[p.ID] = &cp
	out := cp
	return &out, nil
}

func (s *ProfileStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, apperr.NotFound("Profile not found")
	}
	cp := *p
	return &cp, nil
}

func (s *ProfileStore) UpdateProfile(_ context.Context, id string, u models.ProfileUpdate) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, apperr.NotFound("Profile not found")
	}
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.FullName != nil {
		p.FullName = u.FullName
	}
	if u.Interests != nil {
		p.Interests = append([]string(nil), u.Interests...)
	}
	if u.WantedItems != nil {
		p.WantedItems = append([]string(nil), u.WantedItems...)
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (s *ProfileStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return apperr.NotFound("Profile not found")
	}
	t := at.UTC()
	p.LastLogin = &t
	return nil
}

// summary returns the embedded projection of a profile, or nil.
func (s *ProfileStore) summary(id string) *models.ProfileSummary {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil
	}
	return &models.ProfileSummary{ID: p.ID, Username: p.Username, ProfilePicture: p.ProfilePicture}
}
