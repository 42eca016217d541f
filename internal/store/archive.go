package store

import (
	"encoding/json"
	"os"
	"time"

	"chorekeep/internal/model"
)

// ArchiveOldInstances moves tasks completed more than the retention window
// ago out of the list file into the list's archive file. Both recurring
// instances and regular tasks are archived. Returns the count moved.
//
// The sweep is idempotent: a record moves at most once because it is removed
// from the list file in the same write that appends it to the archive.
func (s *Store) ArchiveOldInstances(listID string, retention time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, ok := s.lists[listID]
	if !ok {
		return 0, ErrListNotFound
	}

	cutoff := now.Add(-retention)

	// Work from the persisted form so completed items already hidden from
	// the cache (soft-deleted instances) are archived too.
	lf, err := s.readListFile(listID)
	if err != nil {
		return 0, err
	}
	if lf == nil {
		return 0, nil
	}

	var toArchive []model.Task
	kept := lf.Tasks[:0]
	for _, t := range lf.Tasks {
		if t.Status == model.StatusCompleted && t.Modified.Before(cutoff) {
			toArchive = append(toArchive, t)
			continue
		}
		kept = append(kept, t)
	}
	if len(toArchive) == 0 {
		return 0, nil
	}
	lf.Tasks = kept

	archived, err := s.readArchive(listID)
	if err != nil {
		return 0, err
	}
	archived.Tasks = append(archived.Tasks, toArchive...)

	if err := writeJSONFile(s.archivePath(listID), archived); err != nil {
		return 0, err
	}
	if err := writeJSONFile(s.listPath(listID), lf); err != nil {
		return 0, err
	}

	for _, t := range toArchive {
		delete(cache.tasks, t.UID)
	}
	s.logger.Printf("store: archived %d completed tasks from list %s", len(toArchive), listID)
	return len(toArchive), nil
}

// ArchivedTasks returns the archive contents for a list.
func (s *Store) ArchivedTasks(listID string) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arch, err := s.readArchive(listID)
	if err != nil {
		return nil, err
	}
	return arch.Tasks, nil
}

func (s *Store) readArchive(listID string) (*archiveFile, error) {
	b, err := os.ReadFile(s.archivePath(listID))
	if err != nil {
		if os.IsNotExist(err) {
			return &archiveFile{Tasks: []model.Task{}}, nil
		}
		return nil, err
	}
	var arch archiveFile
	if err := json.Unmarshal(b, &arch); err != nil {
		return nil, err
	}
	if arch.Tasks == nil {
		arch.Tasks = []model.Task{}
	}
	return &arch, nil
}
