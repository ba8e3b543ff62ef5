package conversations_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/conversations"
	"github.com/Vasu1712/campus-marketplace/internal/models"
	"github.com/Vasu1712/campus-marketplace/internal/storage/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg *models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func newService() (*conversations.Service, *recordingPublisher) {
	pub := &recordingPublisher{}
	store := memory.NewConversationStore(memory.NewProfileStore(), memory.NewListingStore(nil))
	return conversations.NewService(store, conversations.WithPublisher(pub)), pub
}

func TestGetConversationRequiresParticipant(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, models.NewConversation{ParticipantIDs: []string{"alice", "bob"}})
	require.NoError(t, err)

	_, err = svc.GetConversation(ctx, conv.ID, "mallory")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
	assert.Equal(t, "Access denied to this conversation", err.Error())

	got, err := svc.GetConversation(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Len(t, got.Participants, 2)
}

func TestUnknownConversationIsAccessDenied(t *testing.T) {
	svc, _ := newService()
	_, err := svc.GetConversation(context.Background(), "nope", "alice")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
}

func TestSendMessageRequiresParticipant(t *testing.T) {
	svc, pub := newService()
	ctx := context.Background()
	conv, err := svc.CreateConversation(ctx, models.NewConversation{ParticipantIDs: []string{"alice", "bob"}})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, models.NewMessage{ConversationID: conv.ID, Content: "hi"}, "mallory")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
	assert.Empty(t, pub.msgs)

	got, err := svc.GetConversation(ctx, conv.ID, "alice")
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func TestSendMessageAppendsAndPublishes(t *testing.T) {
	svc, pub := newService()
	ctx := context.Background()
	conv, err := svc.CreateConversation(ctx, models.NewConversation{ParticipantIDs: []string{"alice", "bob"}})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, models.NewMessage{ConversationID: conv.ID, Content: "  is it available?  "}, "alice")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, models.NewMessage{ConversationID: conv.ID, Content: "yes"}, "bob")
	require.NoError(t, err)

	got, err := svc.GetConversation(ctx, conv.ID, "alice")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "is it available?", got.Messages[0].Content)
	assert.Equal(t, "bob", got.Messages[1].SenderID)
	assert.Len(t, pub.msgs, 2)
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	svc, _ := newService()
	_, err := svc.SendMessage(context.Background(), models.NewMessage{ConversationID: "c", Content: " \n"}, "alice")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateConversationDedupesParticipants(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, models.NewConversation{ParticipantIDs: []string{"alice", "alice", "", "bob"}})
	require.NoError(t, err)
	assert.Len(t, conv.Participants, 2)

	_, err = svc.CreateConversation(ctx, models.NewConversation{ParticipantIDs: []string{" "}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUserConversationsOrderedByActivity(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	first, err := svc.CreateConversation(ctx, models.NewConversation{ParticipantIDs: []string{"alice", "bob"}})
	require.NoError(t, err)
	second, err := svc.CreateConversation(ctx, models.NewConversation{ParticipantIDs: []string{"alice", "carol"}})
	require.NoError(t, err)
	_, err = svc.CreateConversation(ctx, models.NewConversation{ParticipantIDs: []string{"bob", "carol"}})
	require.NoError(t, err)

	convs, err := svc.GetUserConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)

	_, err = svc.SendMessage(ctx, models.NewMessage{ConversationID: first.ID, Content: "ping"}, "bob")
	require.NoError(t, err)

	convs, err = svc.GetUserConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, convs[0].ID)

	none, err := svc.GetUserConversations(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStartListingConversationReusesExisting(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	conv, err := svc.StartListingConversation(ctx, "listing-1", "buyer", "seller")
	require.NoError(t, err)
	require.NotNil(t, conv.ListingID)
	assert.Equal(t, "listing-1", *conv.ListingID)

	again, err := svc.StartListingConversation(ctx, "listing-1", "buyer", "seller")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	// A different buyer gets their own thread with the seller.
	other, err := svc.StartListingConversation(ctx, "listing-1", "buyer-2", "seller")
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, other.ID)

	_, err = svc.StartListingConversation(ctx, "listing-1", "seller", "seller")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDeskConversation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	conv, err := svc.StartListingConversation(ctx, "desk", "buyer", "seller")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, models.NewMessage{ConversationID: conv.ID, Content: "Is the desk still available?"}, "buyer")
	require.NoError(t, err)

	sellerView, err := svc.GetConversation(ctx, conv.ID, "seller")
	require.NoError(t, err)
	require.Len(t, sellerView.Messages, 1)
	assert.Equal(t, "buyer", sellerView.Messages[0].SenderID)

	_, err = svc.GetConversation(ctx, conv.ID, "stranger")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))
}
