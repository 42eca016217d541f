package store

import (
	"chorekeep/internal/model"
)

// TasksForList returns all active tasks and instances (never templates).
func (s *Store) TasksForList(listID string) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cache, ok := s.lists[listID]
	if !ok {
		return nil
	}
	out := make([]model.Task, 0, len(cache.tasks))
	for _, t := range cache.tasks {
		out = append(out, t)
	}
	return out
}

// TemplatesForList returns all active recurring templates.
func (s *Store) TemplatesForList(listID string) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cache, ok := s.lists[listID]
	if !ok {
		return nil
	}
	out := make([]model.Task, 0, len(cache.templates))
	for _, t := range cache.templates {
		out = append(out, t)
	}
	return out
}

// GetTask returns an active task or instance by UID (never a template).
func (s *Store) GetTask(listID, uid string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cache, ok := s.lists[listID]
	if !ok {
		return model.Task{}, ErrListNotFound
	}
	t, ok := cache.tasks[uid]
	if !ok {
		return model.Task{}, ErrTaskNotFound
	}
	return t, nil
}

// GetTemplate returns an active template by UID.
func (s *Store) GetTemplate(listID, uid string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cache, ok := s.lists[listID]
	if !ok {
		return model.Task{}, ErrListNotFound
	}
	t, ok := cache.templates[uid]
	if !ok {
		return model.Task{}, ErrTaskNotFound
	}
	return t, nil
}

// InstancesForTemplate returns all active instances whose parent is the
// given template.
func (s *Store) InstancesForTemplate(listID, parentUID string) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cache, ok := s.lists[listID]
	if !ok {
		return nil
	}
	var out []model.Task
	for _, t := range cache.tasks {
		if t.ParentUID == parentUID {
			out = append(out, t)
		}
	}
	return out
}

// AllRecurringTemplates returns (listID, template) pairs across every list.
type ListTemplate struct {
	ListID   string
	Template model.Task
}

func (s *Store) AllRecurringTemplates() []ListTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ListTemplate
	for listID, cache := range s.lists {
		for _, t := range cache.templates {
			out = append(out, ListTemplate{ListID: listID, Template: t})
		}
	}
	return out
}

// AddTask adds a task or template to a list, routing it to the collection
// its kind belongs in.
func (s *Store) AddTask(listID string, t model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cache, ok := s.lists[listID]
	if !ok {
		return ErrListNotFound
	}
	if t.IsRecurringTemplate() {
		cache.templates[t.UID] = t
	} else {
		cache.tasks[t.UID] = t
	}
	return s.saveListLocked(listID)
}

// UpdateTask replaces an existing task or template.
func (s *Store) UpdateTask(listID string, t model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cache, ok := s.lists[listID]
	if !ok {
		return ErrListNotFound
	}
	if t.IsRecurringTemplate() {
		if _, ok := cache.templates[t.UID]; !ok {
			return ErrTaskNotFound
		}
		cache.templates[t.UID] = t
	} else {
		if _, ok := cache.tasks[t.UID]; !ok {
			return ErrTaskNotFound
		}
		cache.tasks[t.UID] = t
	}
	return s.saveListLocked(listID)
}

// DeleteTask soft-deletes a task or template. The record is dropped from the
// active cache and persisted with its tombstone.
func (s *Store) DeleteTask(listID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteTaskLocked(listID, uid)
}

func (s *Store) deleteTaskLocked(listID, uid string) error {
	cache, ok := s.lists[listID]
	if !ok {
		return ErrListNotFound
	}

	if t, ok := cache.templates[uid]; ok {
		t.MarkDeleted()
		cache.templates[uid] = t
		if err := s.saveListLocked(listID); err != nil {
			return err
		}
		delete(cache.templates, uid)
		return nil
	}
	if t, ok := cache.tasks[uid]; ok {
		t.MarkDeleted()
		cache.tasks[uid] = t
		if err := s.saveListLocked(listID); err != nil {
			return err
		}
		delete(cache.tasks, uid)
		return nil
	}
	return ErrTaskNotFound
}

// DeleteRecurringTaskAndInstances soft-deletes a template together with all
// of its incomplete instances. Completed instances stay as history. The uid
// may name the template itself or any of its instances. Returns the UIDs
// actually deleted, for sync propagation.
func (s *Store) DeleteRecurringTaskAndInstances(listID, uid string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, ok := s.lists[listID]
	if !ok {
		return nil, ErrListNotFound
	}

	templateUID := ""
	if _, ok := cache.templates[uid]; ok {
		templateUID = uid
	} else if t, ok := cache.tasks[uid]; ok {
		if t.ParentUID == "" {
			// Not recurring after all; plain soft delete.
			if err := s.deleteTaskLocked(listID, uid); err != nil {
				return nil, err
			}
			return []string{uid}, nil
		}
		templateUID = t.ParentUID
	} else {
		return nil, ErrTaskNotFound
	}

	if _, ok := cache.templates[templateUID]; !ok {
		// Orphaned instance: delete just the instance.
		s.logger.Printf("store: template %s missing for recurring delete, deleting instance only", templateUID)
		if err := s.deleteTaskLocked(listID, uid); err != nil {
			return nil, err
		}
		return []string{uid}, nil
	}

	var deleted []string
	for iuid, t := range cache.tasks {
		if t.ParentUID != templateUID || t.Status == model.StatusCompleted {
			continue
		}
		t.MarkDeleted()
		cache.tasks[iuid] = t
		deleted = append(deleted, iuid)
	}

	tpl := cache.templates[templateUID]
	tpl.MarkDeleted()
	cache.templates[templateUID] = tpl
	deleted = append(deleted, templateUID)

	if err := s.saveListLocked(listID); err != nil {
		return nil, err
	}
	for _, d := range deleted {
		delete(cache.tasks, d)
	}
	delete(cache.templates, templateUID)
	return deleted, nil
}
