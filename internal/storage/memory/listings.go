package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/models"
)

// ListingStore holds listings in insertion order.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[string]*models.Listing
	order    []string
	profiles *ProfileStore
}

// NewListingStore creates a store. profiles, if non-nil, supplies owner projections.
func NewListingStore(profiles *ProfileStore) *ListingStore {
	return &ListingStore{
		listings: make(map[string]*models.Listing),
		profiles: profiles,
	}
}

// newestFirst returns listings matching keep, newest first. Caller holds the lock.
func (s *ListingStore) newestFirst(keep func(*models.Listing) bool) []models.Listing {
	var out []models.Listing
	for i := len(s.order) - 1; i >= 0; i-- {
		l := s.listings[s.order[i]]
		if l != nil && keep(l) {
			out = append(out, copyListing(l))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *ListingStore) List(_ context.Context, q models.ListingQuery) (*models.ListingPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.newestFirst(q.Filters.Matches)
	page := &models.ListingPage{Listings: []models.Listing{}, Count: len(matched)}
	if q.Offset >= 0 && q.Offset < len(matched) {
		end := len(matched)
		if q.Limit > 0 && q.Limit < end-q.Offset {
			end = q.Offset + q.Limit
		}
		page.Listings = matched[q.Offset:end]
	}
	for i := range page.Listings {
		page.Listings[i].Owner = s.profiles.summary(page.Listings[i].UserID)
	}
	return page, nil
}

func (s *ListingStore) Get(_ context.Context, id string) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, apperr.NotFound("Listing not found")
	}
	out := copyListing(l)
	out.Owner = s.profiles.summary(l.UserID)
	return &out, nil
}

func (s *ListingStore) ListByUser(_ context.Context, userID string) ([]models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirst(func(l *models.Listing) bool { return l.UserID == userID }), nil
}

func (s *ListingStore) Create(_ context.Context, l *models.Listing) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyListing(l)
	cp.ID = uuid.NewString()
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.listings[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	out := copyListing(&cp)
	return &out, nil
}

func (s *ListingStore) Update(_ context.Context, id, userID string, u models.ListingUpdate) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok || l.UserID != userID {
		return nil, apperr.NotFound("Listing not found")
	}
	u.Apply(l)
	l.UpdatedAt = time.Now().UTC()
	out := copyListing(l)
	return &out, nil
}

func (s *ListingStore) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok || l.UserID != userID {
		return apperr.NotFound("Listing not found")
	}
	delete(s.listings, id)
	for i, lid := range s.order {
		if lid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *ListingStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.listings[id]
	return ok, nil
}

// summary returns the conversation projection of a listing, or nil.
func (s *ListingStore) summary(id string) *models.ListingSummary {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil
	}
	return &models.ListingSummary{ID: l.ID, Title: l.Title, ImageURL: l.ImageURL}
}

func copyListing(l *models.Listing) models.Listing {
	cp := *l
	cp.Tags = append([]string{}, l.Tags...)
	cp.Owner = nil
	return cp
}
