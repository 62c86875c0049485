package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	assert.Equal(t, []string{"short"}, Chunk("short", 10))
	assert.Equal(t, []string{"anything"}, Chunk("anything", 0))

	parts := Chunk("hello world again", 11)
	assert.Equal(t, []string{"hello world", "again"}, parts)

	parts = Chunk("line one\nline two", 12)
	assert.Equal(t, []string{"line one", "line two"}, parts)

	parts = Chunk("abcdefghij", 4)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, parts)

	parts = Chunk("привет мир", 6)
	assert.Equal(t, []string{"привет", "мир"}, parts)
}

func TestWebhook(t *testing.T) {
	var got *Update
	h := Webhook(HandlerFunc(func(_ context.Context, u *Update) error {
		got = u
		return nil
	}), 1<<10)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":"1","identity":"u-1","text":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.Identity)
	assert.Equal(t, "u-1", got.ChatID, "chat id defaults to identity")
	assert.Equal(t, "hi", got.Text)
	assert.False(t, got.ReceivedAt.IsZero())
}

func TestWebhook_IdentityIsOpaque(t *testing.T) {
	var got []string
	h := Webhook(HandlerFunc(func(_ context.Context, u *Update) error {
		got = append(got, u.Identity)
		return nil
	}), 1<<10)

	for _, body := range []string{`{"identity":" a"}`, `{"identity":"a"}`, `{"identity":"A"}`} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []string{" a", "a", "A"}, got)
}

func TestWebhook_Rejects(t *testing.T) {
	h := Webhook(HandlerFunc(func(context.Context, *Update) error {
		return errors.New("boom")
	}), 64)

	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "{", http.StatusBadRequest},
		{"no identity", http.MethodPost, `{"text":"x"}`, http.StatusBadRequest},
		{"blank identity", http.MethodPost, `{"identity":"  ","text":"x"}`, http.StatusBadRequest},
		{"too large", http.MethodPost, `{"identity":"a","text":"` + strings.Repeat("x", 100) + `"}`, http.StatusBadRequest},
		{"handler error", http.MethodPost, `{"identity":"a"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/webhook", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestClient_SendChunksAndAuth(t *testing.T) {
	var mu sync.Mutex
	var got []outgoing
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var m outgoing
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{URL: srv.URL, Token: "secret", SendRPS: 100, SendBurst: 10, MaxRunes: 5}, nil)
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), "chat-1", "abcde fghij"))
	require.Len(t, got, 2)
	assert.Equal(t, outgoing{ChatID: "chat-1", Text: "abcde"}, got[0])
	assert.Equal(t, outgoing{ChatID: "chat-1", Text: "fghij"}, got[1])
}

func TestClient_SendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{URL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Error(t, c.Send(context.Background(), "chat-1", "hi"))

	_, err = NewClient(ClientConfig{}, nil)
	assert.Error(t, err)
}
