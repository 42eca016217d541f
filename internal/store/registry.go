package store

import (
	"time"

	"chorekeep/internal/model"
)

// Lists returns all registered list configurations.
func (s *Store) Lists() []model.ListConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ListConfig, len(s.registry.Lists))
	copy(out, s.registry.Lists)
	return out
}

// GetList returns a list's configuration, or ErrListNotFound.
func (s *Store) GetList(listID string) (model.ListConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, lc := range s.registry.Lists {
		if lc.ID == listID {
			return lc, nil
		}
	}
	return model.ListConfig{}, ErrListNotFound
}

// CreateList registers a new list and creates its (empty) task file.
func (s *Store) CreateList(listID, name string) (model.ListConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lc := range s.registry.Lists {
		if lc.ID == listID {
			return lc, nil
		}
	}

	lc := model.ListConfig{ID: listID, Name: name, Sync: map[string]model.ListSyncInfo{}}
	s.registry.Lists = append(s.registry.Lists, lc)
	if err := s.saveRegistryLocked(); err != nil {
		return model.ListConfig{}, err
	}

	s.lists[listID] = newListCache()
	if err := s.saveListLocked(listID); err != nil {
		return model.ListConfig{}, err
	}
	return lc, nil
}

// RenameList updates the display name in the registry.
func (s *Store) RenameList(listID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, lc := range s.registry.Lists {
		if lc.ID == listID {
			s.registry.Lists[i].Name = name
			return s.saveRegistryLocked()
		}
	}
	return ErrListNotFound
}

// DeleteList removes the list from the registry and drops its cache. The
// list's files stay on disk; it is a registry-level removal, not a purge.
func (s *Store) DeleteList(listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.registry.Lists[:0]
	found := false
	for _, lc := range s.registry.Lists {
		if lc.ID == listID {
			found = true
			continue
		}
		kept = append(kept, lc)
	}
	if !found {
		return ErrListNotFound
	}
	s.registry.Lists = kept
	delete(s.lists, listID)
	return s.saveRegistryLocked()
}

// ListSyncInfo returns the sync mapping for a list and backend, or false when
// the list is not mapped.
func (s *Store) ListSyncInfo(listID, backend string) (model.ListSyncInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, lc := range s.registry.Lists {
		if lc.ID == listID {
			info, ok := lc.Sync[backend]
			return info, ok
		}
	}
	return model.ListSyncInfo{}, false
}

// SetListSyncInfo stores the sync mapping for a list and backend.
func (s *Store) SetListSyncInfo(listID, backend string, info model.ListSyncInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, lc := range s.registry.Lists {
		if lc.ID != listID {
			continue
		}
		if s.registry.Lists[i].Sync == nil {
			s.registry.Lists[i].Sync = map[string]model.ListSyncInfo{}
		}
		s.registry.Lists[i].Sync[backend] = info
		return s.saveRegistryLocked()
	}
	return ErrListNotFound
}

// TouchListSync stamps the last-synced time for a mapped list.
func (s *Store) TouchListSync(listID, backend string, at time.Time) error {
	info, ok := s.ListSyncInfo(listID, backend)
	if !ok {
		return ErrListNotFound
	}
	info.LastSyncedAt = &at
	return s.SetListSyncInfo(listID, backend, info)
}

// Metadata returns the per-list metadata blob.
func (s *Store) Metadata(listID string) model.ListMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cache, ok := s.lists[listID]; ok {
		return cache.metadata
	}
	return model.ListMetadata{}
}

// SetMetadata replaces the per-list metadata blob.
func (s *Store) SetMetadata(listID string, meta model.ListMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, ok := s.lists[listID]
	if !ok {
		return ErrListNotFound
	}
	cache.metadata = meta
	return s.saveListLocked(listID)
}
