package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/models"
)

const conversationSelect = `SELECT c.id, c.listing_id, c.created_at, c.updated_at, li.id, li.title, li.image_url
	FROM conversations c
	LEFT JOIN listings li ON li.id = c.listing_id`

// ConversationStore implements the conversation store using PostgreSQL.
type ConversationStore struct {
	db *sql.DB
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func scanConversation(row scanner) (models.Conversation, error) {
	var (
		c         models.Conversation
		listingID sql.NullString
		liID      sql.NullString
		liTitle   sql.NullString
		liImage   sql.NullString
	)
	if err := row.Scan(&c.ID, &listingID, &c.CreatedAt, &c.UpdatedAt, &liID, &liTitle, &liImage); err != nil {
		return c, err
	}
	c.ListingID = nullString(listingID)
	if liID.Valid {
		c.Listing = &models.ListingSummary{ID: liID.String, Title: liTitle.String, ImageURL: nullString(liImage)}
	}
	c.Participants = []models.Participant{}
	c.Messages = []models.Message{}
	return c, nil
}

func (s *ConversationStore) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, conversationSelect+`
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = $1
		ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return convs, nil
	}
	if err := s.attach(ctx, convs, false); err != nil {
		return nil, err
	}
	return convs, nil
}

// attach loads participants and messages for convs in two queries.
func (s *ConversationStore) attach(ctx context.Context, convs []models.Conversation, withProfiles bool) error {
	ids := make([]string, len(convs))
	index := make(map[string]*models.Conversation, len(convs))
	for i := range convs {
		ids[i] = convs[i].ID
		index[convs[i].ID] = &convs[i]
	}

	rows, err := s.db.QueryContext(ctx, `SELECT cp.conversation_id, cp.user_id, p.id, p.username, p.profile_picture
		FROM conversation_participants cp
		LEFT JOIN profiles p ON p.id = cp.user_id
		WHERE cp.conversation_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			p                        models.Participant
			profileID, name, picture sql.NullString
		)
		if err := rows.Scan(&p.ConversationID, &p.UserID, &profileID, &name, &picture); err != nil {
			rows.Close()
			return err
		}
		if withProfiles && profileID.Valid {
			p.Profile = &models.ProfileSummary{ID: profileID.String, Username: name.String, ProfilePicture: picture.String}
		}
		if c := index[p.ConversationID]; c != nil {
			c.Participants = append(c.Participants, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, conversation_id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = ANY($1)
		ORDER BY created_at ASC`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return err
		}
		if c := index[m.ConversationID]; c != nil {
			c.Messages = append(c.Messages, m)
		}
	}
	return rows.Err()
}

func (s *ConversationStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(
		SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&ok)
	if isInvalidText(err) {
		return false, nil
	}
	return ok, err
}

func (s *ConversationStore) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx, conversationSelect+" WHERE c.id = $1", conversationID))
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, apperr.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, err
	}
	convs := []models.Conversation{c}
	if err := s.attach(ctx, convs, true); err != nil {
		return nil, err
	}
	return &convs[0], nil
}

// Create inserts the conversation and its participants in one transaction.
func (s *ConversationStore) Create(ctx context.Context, listingID *string, participantIDs []string) (*models.Conversation, error) {
	conv := models.Conversation{Participants: []models.Participant{}, Messages: []models.Message{}}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var lid sql.NullString
		err := tx.QueryRowContext(ctx,
			`INSERT INTO conversations (listing_id) VALUES ($1) RETURNING id, listing_id, created_at, updated_at`,
			listingID,
		).Scan(&conv.ID, &lid, &conv.CreatedAt, &conv.UpdatedAt)
		if err != nil {
			return err
		}
		conv.ListingID = nullString(lid)

		for _, uid := range participantIDs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`,
				conv.ID, uid)
			if err != nil {
				return err
			}
			conv.Participants = append(conv.Participants, models.Participant{ConversationID: conv.ID, UserID: uid})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// AddMessage stores the message and bumps the conversation's updated_at atomically.
func (s *ConversationStore) AddMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	var msg models.Message
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, conversation_id, sender_id, content, created_at`,
			conversationID, senderID, content,
		).Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindForListing returns the oldest conversation about listingID that has
// every user in userIDs as a participant.
func (s *ConversationStore) FindForListing(ctx context.Context, listingID string, userIDs []string) (*models.Conversation, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT c.id
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE c.listing_id = $1 AND cp.user_id = ANY($2)
		GROUP BY c.id, c.created_at
		HAVING COUNT(DISTINCT cp.user_id) = $3
		ORDER BY c.created_at ASC
		LIMIT 1`, listingID, pq.Array(userIDs), len(userIDs)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
