package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlexKimmel/supportbot/internal/auth"
	"github.com/AlexKimmel/supportbot/internal/ratelimit"
)

type statusResponse struct {
	Identity          string     `json:"identity"`
	Count             int        `json:"count"`
	MaxRequests       int        `json:"max_requests"`
	Blocked           bool       `json:"blocked"`
	UnblockTime       int64      `json:"unblock_time,omitempty"` // unix ms
	UnblockAt         *time.Time `json:"unblock_at,omitempty"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
}

func toResponse(st ratelimit.Status) statusResponse {
	resp := statusResponse{
		Identity:    st.Identity,
		Count:       st.Count,
		MaxRequests: st.MaxRequests,
		Blocked:     st.Blocked,
	}
	if st.Blocked {
		at := st.UnblockAt.UTC()
		resp.UnblockTime = st.UnblockTimeMillis()
		resp.UnblockAt = &at
		resp.RetryAfterSeconds = st.RetryAfterSeconds()
	}
	return resp
}

// Routes mounts the limiter admin API:
//
//	GET  /limits/{identity}
//	POST /limits/{identity}/reset
//	POST /limits/{identity}/unblock
func Routes(ops *Ops) chi.Router {
	r := chi.NewRouter()
	r.Route("/limits/{identity}", func(r chi.Router) {
		r.Get("/", ops.handleStatus)
		r.Post("/reset", ops.handleReset)
		r.Post("/unblock", ops.handleUnblock)
	})
	return r
}

func (o *Ops) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := o.Status(chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(st))
}

func (o *Ops) handleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity")
	if err := o.Reset(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	o.handleStatus(w, r)
}

func (o *Ops) handleUnblock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity")
	if err := o.Unblock(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	o.handleStatus(w, r)
}

func actorFrom(r *http.Request) string {
	if id, ok := auth.KeyIDFrom(r.Context()); ok && id != "" {
		return "api:" + id
	}
	return "api:anon"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code, errCode := http.StatusInternalServerError, "internal"
	if errors.Is(err, ratelimit.ErrEmptyIdentity) {
		code, errCode = http.StatusBadRequest, "missing_identity"
	}
	writeJSON(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": err.Error()},
	})
}
