package chat

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"
)

// Webhook decodes JSON updates posted by the transport and hands them to h.
// Throttled updates are still acknowledged with 200.
func Webhook(h Handler, maxBody int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
			return
		}
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}

		var u Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			writeJSON(w, http.StatusBadRequest, "bad_update", "malformed update")
			return
		}
		// identities are opaque keys; only blank ones are rejected
		if strings.TrimSpace(u.Identity) == "" {
			writeJSON(w, http.StatusBadRequest, "missing_identity", "update has no identity")
			return
		}
		if u.ChatID == "" {
			u.ChatID = u.Identity
		}
		u.ReceivedAt = time.Now()

		if err := h.Handle(r.Context(), &u); err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("identity", u.Identity).Msg("update failed")
			writeJSON(w, http.StatusInternalServerError, "update_failed", "update could not be processed")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func writeJSON(w http.ResponseWriter, code int, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":{"code":"` + errCode + `","message":"` + msg + `"}}`))
}
