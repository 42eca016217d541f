package model

import "time"

// Section is an ordered sub-group of a list, optionally owned by a person.
type Section struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	PersonID  string `json:"person_id,omitempty"`
}

// ListSyncInfo maps a local list to one remote project for one backend.
type ListSyncInfo struct {
	ProjectID    string     `json:"project_id"`
	Status       string     `json:"status,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// ListConfig is the registry entry for a list: display name plus per-backend
// sync mapping. Per-list task data lives in its own store file.
type ListConfig struct {
	ID   string                  `json:"id"`
	Name string                  `json:"name"`
	Sync map[string]ListSyncInfo `json:"sync,omitempty"`
}

// ListMetadata is the small per-list blob stored alongside the list's tasks.
type ListMetadata struct {
	PersonID string `json:"person_id,omitempty"`
}
