package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// FileSink appends events to a plain-text log, one per line:
//
//	2026-01-02T08:15:00.000000001Z|task_completed|{"uid":"...","points":5}
//
// Lines are pipe-delimited so the file greps cleanly by event type. Write
// failures are logged and swallowed.
type FileSink struct {
	mu     sync.Mutex
	path   string
	logger *log.Logger
}

func NewFileSink(path string, logger *log.Logger) *FileSink {
	if logger == nil {
		logger = log.Default()
	}
	return &FileSink{path: path, logger: logger}
}

func (s *FileSink) Record(eventType EventType, metadata EventMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		s.logger.Printf("audit: drop event %s: %v", eventType, err)
		return
	}

	line := fmt.Sprintf("%s|%s|%s\n",
		time.Now().UTC().Format(time.RFC3339Nano), eventType, metadataJSON)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Printf("audit: open %s: %v", s.path, err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		s.logger.Printf("audit: write %s: %v", s.path, err)
	}
}
