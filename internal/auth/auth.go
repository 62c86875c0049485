package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type ctxKey int

const keyID ctxKey = 0

type Key struct {
	ID     string
	Secret string
}

// Store holds the static API keys that guard the admin API and the
// transport webhook.
type Store struct {
	header string
	keys   []Key
}

// NewStatic builds a key store reading secrets from header (default
// "X-API-Key"). Keys with an empty ID or secret are ignored.
func NewStatic(header string, keys []Key) *Store {
	if header == "" {
		header = "X-API-Key"
	}
	s := &Store{header: header}
	for _, k := range keys {
		if k.ID != "" && k.Secret != "" {
			s.keys = append(s.keys, k)
		}
	}
	return s
}

func (s *Store) Len() int { return len(s.keys) }

// Lookup compares secret against every key in constant time.
func (s *Store) Lookup(secret string) (string, bool) {
	id, found := "", false
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(k.Secret), []byte(secret)) == 1 {
			id, found = k.ID, true
		}
	}
	return id, found
}

// secretFrom reads the configured header, then "Authorization: Bearer".
func (s *Store) secretFrom(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(s.header)); v != "" {
		return v
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func WithKeyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyID, id)
}

func KeyIDFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(keyID)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// Middleware rejects requests without a known key, except for skipPaths.
func (s *Store) Middleware(skipPaths map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skipPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			secret := s.secretFrom(r)
			if secret == "" {
				writeJSON(w, http.StatusUnauthorized, "missing_api_key", "Provide API key in "+s.header)
				return
			}
			id, ok := s.Lookup(secret)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, "invalid_api_key", "API key not recognized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithKeyID(r.Context(), id)))
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":{"code":"` + errCode + `","message":"` + msg + `"}}`))
}
