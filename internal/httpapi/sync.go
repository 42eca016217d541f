package httpapi

import (
	"net/http"
	"strings"
	"time"
)

// SyncRoot handles /api/sync: POST triggers a pull cycle, GET reports status.
func (h *Handler) SyncRoot(w http.ResponseWriter, r *http.Request) {
	if h.coordinator == nil || !h.coordinator.Enabled() {
		writeErr(w, 503, "sync is not configured")
		return
	}

	switch r.Method {
	case http.MethodPost:
		listID := r.URL.Query().Get("list")
		stats := h.coordinator.PullChanges(r.Context(), listID)
		writeJSON(w, 200, map[string]any{
			"created": stats.Created,
			"updated": stats.Updated,
			"deleted": stats.Deleted,
		})

	case http.MethodGet:
		body := map[string]any{
			"syncing":  h.coordinator.IsSyncing(),
			"mappings": h.coordinator.ListMappings(),
		}
		if last, ok := h.coordinator.LastSyncTime(); ok {
			body["last_sync"] = last.Format(time.RFC3339)
		}
		writeJSON(w, 200, body)

	default:
		writeErr(w, 405, "method not allowed")
	}
}

// SyncSub handles /api/sync/remote-lists and /api/sync/map.
func (h *Handler) SyncSub(w http.ResponseWriter, r *http.Request) {
	if h.coordinator == nil || !h.coordinator.Enabled() {
		writeErr(w, 503, "sync is not configured")
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, "/api/sync/")
	tail = strings.Trim(tail, "/")

	switch tail {
	case "remote-lists":
		if r.Method != http.MethodGet {
			writeErr(w, 405, "method not allowed")
			return
		}
		writeJSON(w, 200, h.coordinator.RemoteLists(r.Context()))

	case "map":
		if r.Method != http.MethodPost {
			writeErr(w, 405, "method not allowed")
			return
		}
		var req struct {
			ListID string `json:"list_id"`
			Name   string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil || req.ListID == "" {
			writeErr(w, 400, "list_id is required")
			return
		}
		if _, err := h.store.GetList(req.ListID); err != nil {
			writeErr(w, 404, "list not found")
			return
		}
		name := req.Name
		if name == "" {
			lc, _ := h.store.GetList(req.ListID)
			name = lc.Name
		}
		remoteID, ok := h.coordinator.CreateList(r.Context(), req.ListID, name)
		if !ok {
			writeErr(w, 502, "could not create remote list")
			return
		}
		writeJSON(w, 201, map[string]any{"list_id": req.ListID, "remote_id": remoteID})

	default:
		writeErr(w, 404, "not found")
	}
}
