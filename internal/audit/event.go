package audit

import "time"

type EventType string

const (
	EventTaskCompleted   EventType = "task_completed"
	EventTaskUncompleted EventType = "task_uncompleted"
	EventInstanceCreated EventType = "instance_created"
	EventPointsAwarded   EventType = "points_awarded"
	EventBonusAwarded    EventType = "bonus_awarded"
	EventStreakUpdated   EventType = "streak_updated"
	EventStreakReset     EventType = "streak_reset"
	EventSyncCompleted   EventType = "sync_completed"
	EventTaskArchived    EventType = "task_archived"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}
