// Package conversations is the access layer for buyer/seller messaging.
// Participant records are the only authorization primitive: every read or
// write of a single conversation checks membership first.
package conversations

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/logging"
	"github.com/Vasu1712/campus-marketplace/internal/models"
)

const accessDenied = "Access denied to this conversation"

// Store persists conversations, participants and messages.
//
// Create must not leave a conversation without participants behind, and
// AddMessage must touch the conversation's updated_at. Get returns an apperr
// NotFound error for unknown ids; FindForListing returns nil when no
// conversation about listingID has every user in userIDs as a participant.
type Store interface {
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	Get(ctx context.Context, conversationID string) (*models.Conversation, error)
	Create(ctx context.Context, listingID *string, participantIDs []string) (*models.Conversation, error)
	AddMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error)
	FindForListing(ctx context.Context, listingID string, userIDs []string) (*models.Conversation, error)
}

// Publisher fans a stored message out to connected participants.
type Publisher interface {
	Publish(ctx context.Context, msg *models.Message) error
}

type Service struct {
	store     Store
	publisher Publisher
	log       *logrus.Entry
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = logging.Component(log, "conversations") }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, log: logging.Component(nil, "conversations")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetUserConversations lists the conversations userID takes part in, most
// recently active first.
func (s *Service) GetUserConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	convs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "Error fetching conversations")
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

// GetConversation returns a conversation with participants and messages.
func (s *Service) GetConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	conv, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, apperr.Wrap(err, "Error fetching conversation")
	}
	return conv, nil
}

// CreateConversation creates a conversation with the given participants.
func (s *Service) CreateConversation(ctx context.Context, in models.NewConversation) (*models.Conversation, error) {
	ids := dedupe(in.ParticipantIDs)
	if len(ids) == 0 {
		return nil, apperr.Validation("at least one participant is required")
	}
	if in.ListingID != nil && *in.ListingID == "" {
		in.ListingID = nil
	}
	conv, err := s.store.Create(ctx, in.ListingID, ids)
	if err != nil {
		return nil, apperr.Wrap(err, "Error creating conversation")
	}
	s.log.WithFields(logrus.Fields{"conversation_id": conv.ID, "participants": len(ids)}).Info("conversation created")
	return conv, nil
}

// SendMessage appends a message from senderID, who must be a participant.
func (s *Service) SendMessage(ctx context.Context, in models.NewMessage, senderID string) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.Validation("content is required")
	}
	if err := s.requireParticipant(ctx, in.ConversationID, senderID); err != nil {
		return nil, err
	}
	msg, err := s.store.AddMessage(ctx, in.ConversationID, senderID, content)
	if err != nil {
		return nil, apperr.Wrap(err, "Error sending message")
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.log.WithError(err).WithField("conversation_id", msg.ConversationID).Warn("failed to publish message")
		}
	}
	return msg, nil
}

// StartListingConversation returns the conversation about listingID that both
// buyerID and sellerID belong to, creating it if needed.
func (s *Service) StartListingConversation(ctx context.Context, listingID, buyerID, sellerID string) (*models.Conversation, error) {
	if listingID == "" {
		return nil, apperr.Validation("listing id is required")
	}
	if buyerID == "" || sellerID == "" {
		return nil, apperr.Validation("buyer and seller are required")
	}
	if buyerID == sellerID {
		return nil, apperr.Validation("You cannot start a conversation about your own listing")
	}
	existing, err := s.store.FindForListing(ctx, listingID, []string{buyerID, sellerID})
	if err != nil {
		return nil, apperr.Wrap(err, "Error fetching conversation")
	}
	if existing != nil {
		return existing, nil
	}
	return s.CreateConversation(ctx, models.NewConversation{
		ListingID:      &listingID,
		ParticipantIDs: []string{buyerID, sellerID},
	})
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" || userID == "" {
		return apperr.AccessDenied(accessDenied)
	}
	ok, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		s.log.WithError(err).WithField("conversation_id", conversationID).Warn("participant check failed")
		return apperr.AccessDenied(accessDenied)
	}
	if !ok {
		return apperr.AccessDenied(accessDenied)
	}
	return nil
}

// IsParticipant reports whether userID belongs to conversationID.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID string) bool {
	return s.requireParticipant(ctx, conversationID, userID) == nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
