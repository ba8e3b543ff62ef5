package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/listings"
	"github.com/Vasu1712/campus-marketplace/internal/models"
	"github.com/Vasu1712/campus-marketplace/internal/session"
	client "github.com/Vasu1712/campus-marketplace/internal/supabase"
)

type call struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   string
	Auth   string
}

// fakeREST replays canned responses keyed by "METHOD table" and records every request.
type fakeREST struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]func(w http.ResponseWriter)
}

func (f *fakeREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, call{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   string(body),
		Auth:   r.Header.Get("Authorization"),
	})
	f.mu.Unlock()

	key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	if h, ok := f.responses[key]; ok {
		h(w)
		return
	}
	_, _ = w.Write([]byte(`[]`))
}

func jsonBody(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func newFake(t *testing.T, responses map[string]func(w http.ResponseWriter)) (*fakeREST, *client.DatabaseClient) {
	t.Helper()
	f := &fakeREST{responses: responses}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := client.New(client.Config{URL: srv.URL, AnonKey: "anon"})
	require.NoError(t, err)
	return f, c.Database()
}

func TestListingListBuildsFilters(t *testing.T) {
	f, db := newFake(t, map[string]func(w http.ResponseWriter){
		"GET listings": func(w http.ResponseWriter) {
			w.Header().Set("Content-Range", "20-20/21")
			_, _ = w.Write([]byte(`[{"id":"l1","title":"Desk","tags":["Furniture"],"owner":{"id":"u1","username":"sam","profile_picture":"/asu-logo.png"}}]`))
		},
	})
	store := NewListingStore(db)
	minPrice := 10.0

	page, err := store.List(context.Background(), models.ListingQuery{
		Filters: models.ListingFilters{
			Tags:     []string{"Furniture", "Other"},
			Location: "Tempe",
			MinPrice: &minPrice,
			Status:   models.StatusActive,
			Search:   "desk",
		},
		Offset: 20,
		Limit:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, page.Count)
	require.Len(t, page.Listings, 1)
	require.NotNil(t, page.Listings[0].Owner)
	assert.Equal(t, "sam", page.Listings[0].Owner.Username)

	q := f.calls[0].Query
	assert.Equal(t, `ov.{"Furniture","Other"}`, q["tags"][0])
	assert.Equal(t, "ilike.*Tempe*", q["location"][0])
	assert.Equal(t, "gte.10", q["price"][0])
	assert.Equal(t, "eq.active", q["status"][0])
	assert.Equal(t, `(title.ilike."*desk*",description.ilike."*desk*")`, q["or"][0])
	assert.Equal(t, "created_at.desc", q["order"][0])
	assert.Equal(t, "20", q["offset"][0])
	assert.Equal(t, "20", q["limit"][0])
	assert.Equal(t, listingColumns, q["select"][0])
}

func TestListingGetNotFound(t *testing.T) {
	_, db := newFake(t, nil)
	_, err := NewListingStore(db).Get(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListingUpdateScopesToOwner(t *testing.T) {
	f, db := newFake(t, nil)
	title := "Oak desk"

	ctx := client.WithAccessToken(context.Background(), "user-token")
	_, err := NewListingStore(db).Update(ctx, "l1", "u2", models.ListingUpdate{Title: &title})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.Len(t, f.calls, 1)
	c := f.calls[0]
	assert.Equal(t, http.MethodPatch, c.Method)
	assert.Equal(t, "eq.l1", c.Query["id"][0])
	assert.Equal(t, "eq.u2", c.Query["user_id"][0])
	assert.Equal(t, "Bearer user-token", c.Auth)

	var patch map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(c.Body), &patch))
	assert.Equal(t, "Oak desk", patch["title"])
	assert.NotContains(t, patch, "price")
}

func TestListingCreateOmitsGeneratedColumns(t *testing.T) {
	f, db := newFake(t, map[string]func(w http.ResponseWriter){
		"POST listings": jsonBody(`[{"id":"l9","title":"Lamp","user_id":"u1","status":"active","quantity":1,"tags":[]}]`),
	})

	created, err := NewListingStore(db).Create(context.Background(), &models.Listing{
		Title: "Lamp", UserID: "u1", Status: models.StatusActive, Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "l9", created.ID)

	var row map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(f.calls[0].Body), &row))
	assert.NotContains(t, row, "id")
	assert.NotContains(t, row, "created_at")
	assert.Equal(t, []interface{}{}, row["tags"])
}

func TestConversationCreateRemovesOrphanOnParticipantFailure(t *testing.T) {
	f, db := newFake(t, map[string]func(w http.ResponseWriter){
		"POST conversations": jsonBody(`[{"id":"c1","listing_id":null}]`),
		"POST conversation_participants": func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":"42501","message":"new row violates row-level security policy"}`))
		},
	})
	logger, _ := test.NewNullLogger()
	store := NewConversationStore(db, logger)

	_, err := store.Create(context.Background(), nil, []string{"u1", "u2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row-level security")

	require.Len(t, f.calls, 3)
	assert.Equal(t, http.MethodDelete, f.calls[2].Method)
	assert.Equal(t, "/rest/v1/conversations", f.calls[2].Path)
	assert.Equal(t, "eq.c1", f.calls[2].Query["id"][0])
}

func TestAddMessageTouchFailureIsLogged(t *testing.T) {
	f, db := newFake(t, map[string]func(w http.ResponseWriter){
		"POST messages": jsonBody(`[{"id":"m1","conversation_id":"c1","sender_id":"u1","content":"hi"}]`),
		"PATCH conversations": func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"boom"}`))
		},
	})
	logger, hook := test.NewNullLogger()

	msg, err := NewConversationStore(db, logger).AddMessage(context.Background(), "c1", "u1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Len(t, f.calls, 2)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "failed to update conversation timestamp", hook.LastEntry().Message)
}

func TestFindForListingRequiresEveryUser(t *testing.T) {
	f, db := newFake(t, map[string]func(w http.ResponseWriter){
		"GET conversation_participants": jsonBody(`[
			{"conversation_id":"c1","user_id":"buyer","conversation":{"created_at":"2024-01-01T00:00:00Z"}},
			{"conversation_id":"c2","user_id":"buyer","conversation":{"created_at":"2024-01-02T00:00:00Z"}},
			{"conversation_id":"c2","user_id":"seller","conversation":{"created_at":"2024-01-02T00:00:00Z"}}
		]`),
		"GET conversations": jsonBody(`[{"id":"c2","listing_id":"l1","messages":[
			{"id":"m2","created_at":"2024-01-03T00:00:00Z"},
			{"id":"m1","created_at":"2024-01-02T00:00:00Z"}]}]`),
	})
	logger, _ := test.NewNullLogger()

	conv, err := NewConversationStore(db, logger).FindForListing(context.Background(), "l1", []string{"buyer", "seller"})
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "c2", conv.ID)
	assert.Equal(t, "m1", conv.Messages[0].ID)

	q := f.calls[0].Query
	assert.Equal(t, "eq.l1", q["conversation.listing_id"][0])
	assert.Equal(t, `in.("buyer","seller")`, q["user_id"][0])
	assert.Equal(t, "eq.c2", f.calls[1].Query["id"][0])
}

func TestListForUserWithoutMemberships(t *testing.T) {
	f, db := newFake(t, nil)
	logger, _ := test.NewNullLogger()

	convs, err := NewConversationStore(db, logger).ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, convs)
	assert.NotNil(t, convs)
	assert.Len(t, f.calls, 1)
}

func TestTouchLastLogin(t *testing.T) {
	f, db := newFake(t, map[string]func(w http.ResponseWriter){
		"PATCH profiles": jsonBody(`[{"id":"u1","username":"sam"}]`),
	})

	require.NoError(t, NewProfileStore(db).TouchLastLogin(context.Background(), "u1", mustTime(t)))
	assert.Contains(t, f.calls[0].Body, "last_login")
	assert.Equal(t, "eq.u1", f.calls[0].Query["id"][0])
}

func TestLastLoginWritesAsSignedInUser(t *testing.T) {
	f, db := newFake(t, map[string]func(w http.ResponseWriter){
		"PATCH profiles": jsonBody(`[{"id":"u1","username":"sam"}]`),
	})

	n := session.NewNotifier(4, nil)
	session.TrackLastLogin(n, NewProfileStore(db), nil)
	n.Start()
	n.Emit(session.Event{Type: session.SignedIn, UserID: "u1", AccessToken: "user-token"})
	n.Stop()

	require.Len(t, f.calls, 1)
	assert.Equal(t, http.MethodPatch, f.calls[0].Method)
	assert.Equal(t, "Bearer user-token", f.calls[0].Auth)
	assert.Equal(t, "eq.u1", f.calls[0].Query["id"][0])
}

func invalidUUID(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"code":"22P02","details":null,"hint":null,"message":"invalid input syntax for type uuid: \"nope\""}`))
}

func TestMalformedListingIDIsNotFound(t *testing.T) {
	_, db := newFake(t, map[string]func(w http.ResponseWriter){
		"GET listings":    invalidUUID,
		"DELETE listings": invalidUUID,
	})
	svc := listings.NewService(NewListingStore(db))
	ctx := context.Background()

	_, err := svc.GetListing(ctx, "nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), err)

	err = svc.DeleteListing(ctx, "nope", "u1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), err)
}

func TestMalformedConversationIDIsNotFound(t *testing.T) {
	_, db := newFake(t, map[string]func(w http.ResponseWriter){
		"GET conversation_participants": invalidUUID,
		"GET conversations":             invalidUUID,
	})
	store := NewConversationStore(db, nil)
	ctx := context.Background()

	ok, err := store.IsParticipant(ctx, "nope", "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, "nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), err)
}

func mustTime(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2024-05-01T12:00:00Z")
	require.NoError(t, err)
	return ts
}
