package sync

import (
	"context"
	"time"

	"chorekeep/internal/model"
)

// Stats summarizes one pull cycle.
type Stats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// RemoteList is a remote project available for mapping.
type RemoteList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Backend synchronizes local lists against one remote service. A listID of
// "" in PullChanges means every mapped list.
type Backend interface {
	Initialize(ctx context.Context) error
	Name() string

	PushTask(ctx context.Context, listID string, task model.Task) error
	DeleteTask(ctx context.Context, listID string, task model.Task) error
	CompleteTask(ctx context.Context, listID string, task model.Task) error
	PullChanges(ctx context.Context, listID string) (Stats, error)

	CreateList(ctx context.Context, listID, name string) (string, error)
	ListMappings() map[string]string
	RemoteLists(ctx context.Context) ([]RemoteList, error)
}

// The remote's timestamp shape is yyyy-MM-dd'T'HH:mm:ss+0000. The offset is
// always numeric on the wire, but incoming values may also carry a literal Z.
const (
	remoteDateWriteLayout = "2006-01-02T15:04:05-0700"
	remoteDateReadLayout  = "2006-01-02T15:04:05Z0700"
)

// formatRemoteDate renders a timestamp in the given zone for the wire,
// returning the formatted string and the zone name that accompanies it.
func formatRemoteDate(t time.Time, loc *time.Location) (string, string) {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(remoteDateWriteLayout), loc.String()
}

// parseRemoteDate converts a wire timestamp back to UTC.
func parseRemoteDate(s string) (*time.Time, error) {
	t, err := time.Parse(remoteDateReadLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, err
		}
	}
	u := t.UTC()
	return &u, nil
}
