package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL, AnonKey: "anon-key"})
	require.NoError(t, err)
	return c
}

func TestNewRequiresSettings(t *testing.T) {
	_, err := New(Config{AnonKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "https://x.supabase.co"})
	assert.Error(t, err)
}

func TestSelectQueryString(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Range", "20-39/57")
		_, _ = w.Write([]byte(`[{"id":"l1"}]`))
	})

	var rows []map[string]interface{}
	count, err := c.Database().From("listings").
		Select("*").
		Eq("status", "active").
		Overlaps("tags", []string{"Textbooks", "Other"}).
		ILike("location", "*tempe*").
		Gte("price", 5).
		Lte("price", 50).
		Or(`title.ilike."*desk, oak*"`, `description.ilike."*desk, oak*"`).
		Order("created_at", OrderDesc).
		Range(20, 39).
		Count().
		ExecuteCount(context.Background(), &rows)
	require.NoError(t, err)

	assert.Equal(t, 57, count)
	assert.Len(t, rows, 1)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/rest/v1/listings", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "eq.active", q.Get("status"))
	assert.Equal(t, `ov.{"Textbooks","Other"}`, q.Get("tags"))
	assert.Equal(t, "ilike.*tempe*", q.Get("location"))
	assert.Equal(t, []string{"gte.5", "lte.50"}, q["price"])
	assert.Equal(t, `(title.ilike."*desk, oak*",description.ilike."*desk, oak*")`, q.Get("or"))
	assert.Equal(t, "created_at.desc", q.Get("order"))
	assert.Equal(t, "20", q.Get("offset"))
	assert.Equal(t, "20", q.Get("limit"))
	assert.Equal(t, "count=exact", got.Header.Get("Prefer"))
	assert.Equal(t, "anon-key", got.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", got.Header.Get("Authorization"))
}

func TestAccessTokenForwarded(t *testing.T) {
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	})

	ctx := WithAccessToken(context.Background(), "user-jwt")
	require.NoError(t, c.Database().From("conversations").ExecuteInto(ctx, &[]map[string]interface{}{}))
	assert.Equal(t, "Bearer user-jwt", auth)
}

func TestInsertSendsBodyAndPrefer(t *testing.T) {
	var body map[string]interface{}
	var prefer, method string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		prefer = r.Header.Get("Prefer")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"new"}]`))
	})

	var rows []struct{ ID string }
	err := c.Database().From("messages").Insert(map[string]string{"content": "hi"}).ExecuteInto(context.Background(), &rows)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "return=representation", prefer)
	assert.Equal(t, "hi", body["content"])
	assert.Equal(t, "new", rows[0].ID)
}

func TestPostgrestErrorParsed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"22P02","message":"invalid input syntax for type uuid","details":null,"hint":null}`))
	})

	err := c.Database().From("listings").Eq("id", "nope").ExecuteInto(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "invalid input syntax for type uuid", err.Error())
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestResponseBodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"l1","title":"` + strings.Repeat("x", 256) + `"}]`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, AnonKey: "anon-key", MaxResponseBytes: 64})
	require.NoError(t, err)
	var rows []map[string]interface{}
	err = c.Database().From("listings").ExecuteInto(context.Background(), &rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")

	c, err = New(Config{URL: srv.URL, AnonKey: "anon-key"})
	require.NoError(t, err)
	require.NoError(t, c.Database().From("listings").ExecuteInto(context.Background(), &rows))
	assert.Len(t, rows, 1)
}

func TestIsInvalidText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"22P02","message":"invalid input syntax for type uuid"}`))
	})

	err := c.Database().From("listings").Eq("id", "nope").ExecuteInto(context.Background(), nil)
	assert.True(t, IsInvalidText(err))
	assert.False(t, IsInvalidText(&Error{Code: "23505"}))
	assert.False(t, IsInvalidText(nil))
}

func TestGoTrueErrorParsed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	_, err := c.Auth().SignInWithPassword(context.Background(), "a@asu.edu", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())
}

func TestSignInWithPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,"user":{"id":"u1","email":"a@asu.edu"}}`))
	})

	s, err := c.Auth().SignInWithPassword(context.Background(), "a@asu.edu", "pw")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	assert.Equal(t, "u1", s.User.ID)
}

func TestSignUpPendingConfirmation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u2","email":"b@asu.edu","created_at":"2024-01-02T03:04:05Z"}`))
	})

	res, err := c.Auth().SignUp(context.Background(), "b@asu.edu", "pw", map[string]interface{}{"username": "b"})
	require.NoError(t, err)
	assert.Nil(t, res.Session)
	assert.Equal(t, "u2", res.User.ID)
}

func TestAuthorizeURL(t *testing.T) {
	c, err := New(Config{URL: "https://x.supabase.co/", AnonKey: "k"})
	require.NoError(t, err)
	assert.Equal(t,
		"https://x.supabase.co/auth/v1/authorize?provider=google&redirect_to=http%3A%2F%2F127.0.0.1%3A5173%2Fapi%2Fauth%2Fcallback",
		c.Auth().AuthorizeURL("google", "http://127.0.0.1:5173/api/auth/callback"))
}

func TestStorageUploadRemoveAndPublicURL(t *testing.T) {
	var paths []string
	var removed map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost {
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		}
		if r.Method == http.MethodDelete {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &removed)
		}
		_, _ = w.Write([]byte(`{"Key":"x"}`))
	})

	ctx := context.Background()
	require.NoError(t, c.Storage().Upload(ctx, "public-listings", "listing-images/u1-abc.png", []byte("png"), "image/png", false))
	require.NoError(t, c.Storage().Remove(ctx, "public-listings", []string{"listing-images/u1-abc.png"}))

	assert.Equal(t, []string{
		"POST /storage/v1/object/public-listings/listing-images/u1-abc.png",
		"DELETE /storage/v1/object/public-listings",
	}, paths)
	assert.Equal(t, []string{"listing-images/u1-abc.png"}, removed["prefixes"])
	assert.Contains(t, c.Storage().PublicURL("public-listings", "listing-images/u1-abc.png"),
		"/storage/v1/object/public/public-listings/listing-images/u1-abc.png")
}

func TestObserveCalled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	var api string
	var status int
	c, err := New(Config{URL: srv.URL, AnonKey: "k", Observe: func(a string, s int, _ time.Duration) {
		api, status = a, s
	}})
	require.NoError(t, err)
	require.NoError(t, c.Database().From("profiles").ExecuteInto(context.Background(), nil))
	assert.Equal(t, "rest", api)
	assert.Equal(t, http.StatusOK, status)
}

func TestParseContentRange(t *testing.T) {
	assert.Equal(t, 57, parseContentRange("0-19/57"))
	assert.Equal(t, 0, parseContentRange("*/0"))
	assert.Equal(t, -1, parseContentRange("0-19/*"))
	assert.Equal(t, -1, parseContentRange(""))
}
