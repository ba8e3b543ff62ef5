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

type conversation struct {
	models.Conversation
	members []string
	// touched orders conversations whose updated_at ties.
	touched int64
}

type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	userIndex     map[string][]string // userID -> []conversationID
	clock         int64

	profiles *ProfileStore
	listings *ListingStore
}

// NewConversationStore creates a store. profiles and listings may be nil; when
// set they supply the embedded projections.
func NewConversationStore(profiles *ProfileStore, listings *ListingStore) *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*conversation),
		userIndex:     make(map[string][]string),
		profiles:      profiles,
		listings:      listings,
	}
}

func (s *ConversationStore) ListForUser(_ context.Context, userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []*conversation
	for _, id := range s.userIndex[userID] {
		if c, ok := s.conversations[id]; ok {
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].touched > convs[j].touched
	})

	out := make([]models.Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, s.detail(c, false))
	}
	return out, nil
}

func (s *ConversationStore) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return false, nil
	}
	return contains(c.members, userID), nil
}

func (s *ConversationStore) Get(_ context.Context, conversationID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, apperr.NotFound("Conversation not found")
	}
	out := s.detail(c, true)
	return &out, nil
}

func (s *ConversationStore) Create(_ context.Context, listingID *string, participantIDs []string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.clock++
	c := &conversation{
		Conversation: models.Conversation{
			ID:        uuid.NewString(),
			CreatedAt: now,
			UpdatedAt: now,
			Messages:  []models.Message{},
		},
		members: append([]string(nil), participantIDs...),
		touched: s.clock,
	}
	if listingID != nil {
		id := *listingID
		c.ListingID = &id
	}
	s.conversations[c.ID] = c
	for _, uid := range participantIDs {
		s.userIndex[uid] = append(s.userIndex[uid], c.ID)
	}
	out := s.detail(c, false)
	return &out, nil
}

func (s *ConversationStore) AddMessage(_ context.Context, conversationID, senderID, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, apperr.NotFound("Conversation not found")
	}
	now := time.Now().UTC()
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
	}
	c.Messages = append(c.Messages, msg)
	s.clock++
	c.UpdatedAt = now
	c.touched = s.clock
	return &msg, nil
}

// FindForListing returns the oldest conversation about listingID whose
// participants include every id in userIDs.
func (s *ConversationStore) FindForListing(_ context.Context, listingID string, userIDs []string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(userIDs) == 0 {
		return nil, nil
	}
	var found *conversation
	for _, id := range s.userIndex[userIDs[0]] {
		c := s.conversations[id]
		if c == nil || c.ListingID == nil || *c.ListingID != listingID {
			continue
		}
		all := true
		for _, uid := range userIDs[1:] {
			if !contains(c.members, uid) {
				all = false
				break
			}
		}
		if all && (found == nil || c.CreatedAt.Before(found.CreatedAt)) {
			found = c
		}
	}
	if found == nil {
		return nil, nil
	}
	out := s.detail(found, false)
	return &out, nil
}

// detail copies c with its projections. Caller holds the lock.
func (s *ConversationStore) detail(c *conversation, withProfiles bool) models.Conversation {
	out := c.Conversation
	out.Messages = append([]models.Message{}, c.Messages...)
	out.Participants = make([]models.Participant, 0, len(c.members))
	for _, uid := range c.members {
		p := models.Participant{ConversationID: c.ID, UserID: uid}
		if withProfiles {
			p.Profile = s.profiles.summary(uid)
		}
		out.Participants = append(out.Participants, p)
	}
	if c.ListingID != nil {
		out.Listing = s.listings.summary(*c.ListingID)
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
