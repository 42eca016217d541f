package model

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	StatusNeedsAction TaskStatus = "needs_action"
	StatusCompleted   TaskStatus = "completed"
)

// Sync status values for a task's per-backend sync record.
const (
	SyncStatusSynced      = "synced"
	SyncStatusPendingPush = "pending_push"
	SyncStatusPushFailed  = "push_failed"
)

var (
	ErrTemplateWithDue     = errors.New("model: template must not carry a due date")
	ErrTemplateWithParent  = errors.New("model: template must not reference a parent")
	ErrInstanceTemplate    = errors.New("model: instance must not be a template")
	ErrTemplateWithoutRule = errors.New("model: template requires a recurrence rule or the dateless flag")
)

// SyncInfo is the per-backend synchronization record carried by a task.
type SyncInfo struct {
	ID                        string     `json:"id,omitempty"`
	Etag                      string     `json:"etag,omitempty"`
	Status                    string     `json:"status,omitempty"`
	LastSyncedAt              *time.Time `json:"last_synced_at,omitempty"`
	LastSyncedOccurrenceIndex *int       `json:"last_synced_occurrence_index,omitempty"`
}

// Task is the unit of work. A task is exactly one of: a template (recurring
// definition, never shown to users, never has a due date), an instance (one
// occurrence of a template), or a regular task (neither flag set).
type Task struct {
	UID         string     `json:"uid"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Created     time.Time  `json:"created"`
	Modified    time.Time  `json:"modified"`

	Due       *time.Time `json:"due,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	Tags      []string   `json:"tags,omitempty"`

	RRule         string     `json:"rrule,omitempty"`
	StreakCurrent int        `json:"streak_current,omitempty"`
	StreakLongest int        `json:"streak_longest,omitempty"`
	LastCompleted *time.Time `json:"last_completed,omitempty"`

	PointsValue         int `json:"points_value,omitempty"`
	StreakBonusPoints   int `json:"streak_bonus_points,omitempty"`
	StreakBonusInterval int `json:"streak_bonus_interval,omitempty"`

	ParentUID           string `json:"parent_uid,omitempty"`
	IsTemplate          bool   `json:"is_template,omitempty"`
	OccurrenceIndex     int    `json:"occurrence_index"`
	IsAllDay            bool   `json:"is_all_day,omitempty"`
	SectionID           string `json:"section_id,omitempty"`
	IsDatelessRecurring bool   `json:"is_dateless_recurring,omitempty"`

	Sync map[string]SyncInfo `json:"sync,omitempty"`
}

// NewTask creates a task with a fresh UID and creation timestamps.
func NewTask(summary string) Task {
	now := time.Now().UTC()
	return Task{
		UID:      uuid.NewString(),
		Summary:  summary,
		Status:   StatusNeedsAction,
		Created:  now,
		Modified: now,
	}
}

func (t *Task) Touch() {
	t.Modified = time.Now().UTC()
}

func (t *Task) IsDeleted() bool {
	return t.DeletedAt != nil
}

// MarkDeleted soft-deletes the task. The record stays in the persisted form.
func (t *Task) MarkDeleted() {
	now := time.Now().UTC()
	t.DeletedAt = &now
	t.Modified = now
}

func (t *Task) IsRecurringTemplate() bool {
	return t.IsTemplate && (t.RRule != "" || t.IsDatelessRecurring)
}

func (t *Task) IsRecurringInstance() bool {
	return t.ParentUID != ""
}

func (t *Task) IsRecurring() bool {
	return t.IsRecurringTemplate() || t.IsRecurringInstance()
}

// IsOverdue reports whether the task is past its due date and not completed.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Due == nil || t.Status == StatusCompleted {
		return false
	}
	return now.After(*t.Due)
}

func (t *Task) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// SyncID returns the remote id for a backend, or "" when never synced.
func (t *Task) SyncID(backend string) string {
	return t.Sync[backend].ID
}

// SetSyncInfo stores the sync record for a backend, allocating the map lazily.
func (t *Task) SetSyncInfo(backend string, info SyncInfo) {
	if t.Sync == nil {
		t.Sync = map[string]SyncInfo{}
	}
	t.Sync[backend] = info
}

// Validate rejects the flag combinations the store must never persist.
func (t *Task) Validate() error {
	if t.IsTemplate {
		if t.Due != nil {
			return ErrTemplateWithDue
		}
		if t.ParentUID != "" {
			return ErrTemplateWithParent
		}
		if t.RRule == "" && !t.IsDatelessRecurring {
			return ErrTemplateWithoutRule
		}
	}
	if t.ParentUID != "" && t.IsTemplate {
		return ErrInstanceTemplate
	}
	return nil
}
