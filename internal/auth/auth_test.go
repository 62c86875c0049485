package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKimmel/supportbot/internal/store"
)

func TestStore_Middleware(t *testing.T) {
	s := NewStatic("", []Key{{ID: "ops", Secret: "s3cret"}, {ID: "", Secret: "ignored"}})
	assert.Equal(t, 1, s.Len())

	var gotID string
	h := s.Middleware(map[string]struct{}{"/health": {}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = KeyIDFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		path   string
		key    string
		bearer bool
		code   int
		id     string
	}{
		{"skipped path", "/health", "", false, http.StatusNoContent, ""},
		{"missing key", "/v1/limits/x", "", false, http.StatusUnauthorized, ""},
		{"bad key", "/v1/limits/x", "nope", false, http.StatusUnauthorized, ""},
		{"good key", "/v1/limits/x", "s3cret", false, http.StatusNoContent, "ops"},
		{"bearer", "/webhook", "s3cret", true, http.StatusNoContent, "ops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			switch {
			case tt.key != "" && tt.bearer:
				req.Header.Set("Authorization", "Bearer "+tt.key)
			case tt.key != "":
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.id, gotID)
		})
	}
}

type failingLookup struct{}

func (failingLookup) User(context.Context, string) (store.User, error) {
	return store.User{}, errors.New("db down")
}

func TestResolver_IsPrivileged(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemory()
	_, err := users.TouchUser(ctx, store.User{Identity: "op"})
	require.NoError(t, err)
	require.NoError(t, users.SetRole(ctx, "op", store.RoleOperator))
	_, err = users.TouchUser(ctx, store.User{Identity: "plain"})
	require.NoError(t, err)

	r := NewResolver([]string{"root", ""}, users, zerolog.Nop())
	assert.True(t, r.IsPrivileged(ctx, "root"))
	assert.True(t, r.IsPrivileged(ctx, "op"))
	assert.False(t, r.IsPrivileged(ctx, "plain"))
	assert.False(t, r.IsPrivileged(ctx, "stranger"))
	assert.False(t, r.IsPrivileged(ctx, ""))
	assert.False(t, r.IsPrivileged(ctx, "Root"), "identities are case-sensitive")

	assert.False(t, NewResolver(nil, failingLookup{}, zerolog.Nop()).IsPrivileged(ctx, "op"))
	assert.False(t, NewResolver(nil, nil, zerolog.Nop()).IsPrivileged(ctx, "op"))
}
