package store

import (
	"chorekeep/internal/model"
)

// SectionsForList returns the list's sections ordered as stored.
func (s *Store) SectionsForList(listID string) []model.Section {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cache, ok := s.lists[listID]
	if !ok {
		return nil
	}
	out := make([]model.Section, len(cache.sections))
	copy(out, cache.sections)
	return out
}

// SetSections replaces the list's sections.
func (s *Store) SetSections(listID string, sections []model.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, ok := s.lists[listID]
	if !ok {
		return ErrListNotFound
	}
	if sections == nil {
		sections = []model.Section{}
	}
	cache.sections = sections
	return s.saveListLocked(listID)
}

// DefaultSectionID returns the section with the highest sort order, the
// place new tasks land when no section is chosen. Empty when no sections.
func (s *Store) DefaultSectionID(listID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cache, ok := s.lists[listID]
	if !ok || len(cache.sections) == 0 {
		return ""
	}
	best := cache.sections[0]
	for _, sec := range cache.sections[1:] {
		if sec.SortOrder > best.SortOrder {
			best = sec
		}
	}
	return best.ID
}
