package supabase

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/logging"
	"github.com/Vasu1712/campus-marketplace/internal/models"
	client "github.com/Vasu1712/campus-marketplace/internal/supabase"
)

const (
	conversationsTable = "conversations"
	participantsTable  = "conversation_participants"
	messagesTable      = "messages"

	conversationColumns = "*,participants:conversation_participants(conversation_id,user_id)," +
		"listing:listings(id,title,image_url),messages(*)"
	conversationDetailColumns = "*,participants:conversation_participants(conversation_id,user_id," +
		"profile:profiles(id,username,profile_picture)),listing:listings(id,title,image_url),messages(*)"
)

type participantRow struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// ConversationStore writes conversations in several PostgREST calls. Create
// removes the conversation again when its participants cannot be inserted.
type ConversationStore struct {
	db  *client.DatabaseClient
	log *logrus.Entry
}

func NewConversationStore(db *client.DatabaseClient, log logrus.FieldLogger) *ConversationStore {
	return &ConversationStore{db: db, log: logging.Component(log, "conversations")}
}

func (s *ConversationStore) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var memberships []participantRow
	err := s.db.From(participantsTable).
		Select("conversation_id,user_id").
		Eq("user_id", userID).
		ExecuteInto(ctx, &memberships)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []models.Conversation{}, nil
	}

	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.ConversationID
	}
	var convs []models.Conversation
	err = s.db.From(conversationsTable).
		Select(conversationColumns).
		In("id", ids).
		Order("updated_at", client.OrderDesc).
		ExecuteInto(ctx, &convs)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		normalize(&convs[i])
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

func (s *ConversationStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var rows []participantRow
	err := s.db.From(participantsTable).
		Select("conversation_id,user_id").
		Eq("conversation_id", conversationID).
		Eq("user_id", userID).
		Limit(1).
		ExecuteInto(ctx, &rows)
	if client.IsInvalidText(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *ConversationStore) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var rows []models.Conversation
	err := s.db.From(conversationsTable).
		Select(conversationDetailColumns).
		Eq("id", conversationID).
		Limit(1).
		ExecuteInto(ctx, &rows)
	if err != nil && !client.IsInvalidText(err) {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("Conversation not found")
	}
	normalize(&rows[0])
	return &rows[0], nil
}

func (s *ConversationStore) Create(ctx context.Context, listingID *string, participantIDs []string) (*models.Conversation, error) {
	var created []models.Conversation
	err := s.db.From(conversationsTable).
		Insert(map[string]interface{}{"listing_id": listingID}).
		ExecuteInto(ctx, &created)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, apperr.New(apperr.KindTransport, "insert returned no rows")
	}
	conv := created[0]

	rows := make([]participantRow, len(participantIDs))
	for i, uid := range participantIDs {
		rows[i] = participantRow{ConversationID: conv.ID, UserID: uid}
	}
	var inserted []models.Participant
	if err := s.db.From(participantsTable).Insert(rows).ExecuteInto(ctx, &inserted); err != nil {
		s.discard(ctx, conv.ID)
		return nil, err
	}

	conv.Participants = inserted
	normalize(&conv)
	return &conv, nil
}

// discard deletes a conversation whose participants could not be stored.
func (s *ConversationStore) discard(ctx context.Context, conversationID string) {
	var rows []struct {
		ID string `json:"id"`
	}
	err := s.db.From(conversationsTable).Delete().Select("id").Eq("id", conversationID).ExecuteInto(ctx, &rows)
	if err != nil {
		s.log.WithError(err).WithField("conversation_id", conversationID).Error("failed to remove conversation without participants")
	}
}

// AddMessage inserts the message and then bumps the conversation's updated_at.
// A failed bump is logged; the message itself is already stored.
func (s *ConversationStore) AddMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	var rows []models.Message
	err := s.db.From(messagesTable).
		Insert(map[string]string{
			"conversation_id": conversationID,
			"sender_id":       senderID,
			"content":         content,
		}).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.KindTransport, "insert returned no rows")
	}
	msg := rows[0]

	var touched []struct {
		ID string `json:"id"`
	}
	err = s.db.From(conversationsTable).
		Update(map[string]interface{}{"updated_at": time.Now().UTC()}).
		Select("id").
		Eq("id", conversationID).
		ExecuteInto(ctx, &touched)
	if err != nil {
		s.log.WithError(err).WithField("conversation_id", conversationID).Warn("failed to update conversation timestamp")
	}
	return &msg, nil
}

// FindForListing counts, per conversation about listingID, how many of userIDs
// are participants and returns the oldest conversation that has all of them.
func (s *ConversationStore) FindForListing(ctx context.Context, listingID string, userIDs []string) (*models.Conversation, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []struct {
		ConversationID string `json:"conversation_id"`
		UserID         string `json:"user_id"`
		Conversation   struct {
			CreatedAt time.Time `json:"created_at"`
		} `json:"conversation"`
	}
	err := s.db.From(participantsTable).
		Select("conversation_id,user_id,conversation:conversations!inner(listing_id,created_at)").
		Eq("conversation.listing_id", listingID).
		In("user_id", userIDs).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	created := make(map[string]time.Time)
	for _, r := range rows {
		counts[r.ConversationID]++
		created[r.ConversationID] = r.Conversation.CreatedAt
	}
	var found string
	for id, n := range counts {
		if n < len(userIDs) {
			continue
		}
		if found == "" || created[id].Before(created[found]) {
			found = id
		}
	}
	if found == "" {
		return nil, nil
	}
	return s.Get(ctx, found)
}

// normalize fills nil slices and orders messages oldest first.
func normalize(c *models.Conversation) {
	if c.Participants == nil {
		c.Participants = []models.Participant{}
	}
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	sort.SliceStable(c.Messages, func(i, j int) bool {
		return c.Messages[i].CreatedAt.Before(c.Messages[j].CreatedAt)
	})
}
