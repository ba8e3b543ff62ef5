package models

import "time"

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type Participant struct {
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id"`
	Profile        *ProfileSummary `json:"profile,omitempty"`
}

// ListingSummary is the listing projection embedded in a conversation.
type ListingSummary struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL *string `json:"image_url"`
}

// Conversation is a message thread, optionally about a listing.
// Participants, Listing and Messages are only populated on detail reads.
type Conversation struct {
	ID           string          `json:"id"`
	ListingID    *string         `json:"listing_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Participants []Participant   `json:"participants"`
	Listing      *ListingSummary `json:"listing,omitempty"`
	Messages     []Message       `json:"messages"`
}

// HasParticipant reports whether userID is among the loaded participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

type NewConversation struct {
	ListingID      *string  `json:"listing_id,omitempty"`
	ParticipantIDs []string `json:"participant_ids"`
}

type NewMessage struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}
