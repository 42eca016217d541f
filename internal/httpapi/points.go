package httpapi

import (
	"net/http"
	"strings"
	"time"
)

// PointsSub handles /api/points/{personID} and /api/points/{personID}/transactions.
func (h *Handler) PointsSub(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeErr(w, 503, "points ledger is not configured")
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, "/api/points/")
	tail = strings.Trim(tail, "/")
	if tail == "" {
		writeErr(w, 404, "not found")
		return
	}

	parts := strings.Split(tail, "/")
	personID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		state := h.ledger.Balance(personID)
		writeJSON(w, 200, map[string]any{
			"person_id": personID,
			"balance":   state.Balance,
			"lifetime":  state.Lifetime,
		})

	case len(parts) == 2 && parts[1] == "transactions" && r.Method == http.MethodGet:
		since := time.Time{}
		if raw := r.URL.Query().Get("since"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeErr(w, 400, "since must be RFC 3339")
				return
			}
			since = parsed
		}
		writeJSON(w, 200, h.ledger.Transactions(personID, since))

	default:
		writeErr(w, 404, "not found")
	}
}
