package audit

import (
	"encoding/json"
	"sync"
	"time"
)

// Sink records audit events. Implementations must never fail the calling
// operation: completing a chore cannot be blocked by a full disk under the
// audit file.
type Sink interface {
	Record(eventType EventType, metadata EventMetadata)
}

// MemorySink keeps events in memory (dev/test use).
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
	nextID int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		events: make([]Event, 0),
		nextID: 1,
	}
}

func (s *MemorySink) Record(eventType EventType, metadata EventMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return
	}

	s.events = append(s.events, Event{
		ID:        s.nextID,
		Type:      eventType,
		Timestamp: time.Now(),
		Metadata:  string(metadataJSON),
	})
	s.nextID++
}

// Events returns recorded events, newest last, optionally filtered by type.
func (s *MemorySink) Events(since time.Time, eventTypes []EventType) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeFilter := make(map[EventType]bool)
	for _, t := range eventTypes {
		typeFilter[t] = true
	}

	result := make([]Event, 0)
	for _, event := range s.events {
		if event.Timestamp.Before(since) {
			continue
		}
		if len(eventTypes) > 0 && !typeFilter[event.Type] {
			continue
		}
		result = append(result, event)
	}
	return result
}

func (s *MemorySink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]Event, 0)
	s.nextID = 1
}
