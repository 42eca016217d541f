// Package store is the durable task store: one JSON file per list holding
// templates and tasks in disjoint collections, an archive file per list for
// old completed items, and a registry file mapping list ids to names and
// per-backend sync info.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"chorekeep/internal/model"
)

var (
	ErrListNotFound = errors.New("store: list not found")
	ErrTaskNotFound = errors.New("store: task not found")
)

type registryState struct {
	Lists []model.ListConfig `json:"lists"`
}

// listFile is the persisted form of one list. Templates never mix with
// tasks/instances so they cannot leak into user-facing listings.
type listFile struct {
	RecurringTemplates []model.Task       `json:"recurring_templates"`
	Tasks              []model.Task       `json:"tasks"`
	Sections           []model.Section    `json:"sections"`
	Metadata           model.ListMetadata `json:"metadata"`
}

type archiveFile struct {
	Tasks []model.Task `json:"tasks"`
}

// listCache holds the active (non-deleted) records of one list. Soft-deleted
// records live only in the persisted form and are merged back in on save.
type listCache struct {
	templates map[string]model.Task
	tasks     map[string]model.Task
	sections  []model.Section
	metadata  model.ListMetadata
}

func newListCache() *listCache {
	return &listCache{
		templates: map[string]model.Task{},
		tasks:     map[string]model.Task{},
		sections:  []model.Section{},
	}
}

// Store is the single logical writer for all lists. Mutations take the write
// lock; reads are served from the cache under the read lock.
type Store struct {
	mu      sync.RWMutex
	dataDir string
	logger  *log.Logger

	registry registryState
	lists    map[string]*listCache
}

func New(dataDir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{
		dataDir: dataDir,
		logger:  logger,
		lists:   map[string]*listCache{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) registryPath() string {
	return filepath.Join(s.dataDir, "lists.json")
}

func (s *Store) listPath(listID string) string {
	return filepath.Join(s.dataDir, "list_"+listID+".json")
}

func (s *Store) archivePath(listID string) string {
	return filepath.Join(s.dataDir, "list_"+listID+"_archive.json")
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.registryPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		s.registry = registryState{Lists: []model.ListConfig{}}
		return nil
	}
	if err := json.Unmarshal(b, &s.registry); err != nil {
		return fmt.Errorf("store: corrupt registry: %w", err)
	}
	if s.registry.Lists == nil {
		s.registry.Lists = []model.ListConfig{}
	}

	for _, lc := range s.registry.Lists {
		if err := s.loadListLocked(lc.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadListLocked(listID string) error {
	cache := newListCache()
	s.lists[listID] = cache

	lf, err := s.readListFile(listID)
	if err != nil {
		return err
	}
	if lf == nil {
		return nil
	}

	for _, t := range lf.RecurringTemplates {
		t.IsTemplate = true
		if !t.IsDeleted() {
			cache.templates[t.UID] = t
		}
	}
	for _, t := range lf.Tasks {
		t.IsTemplate = false
		if !t.IsDeleted() {
			cache.tasks[t.UID] = t
		}
	}
	cache.sections = lf.Sections
	if cache.sections == nil {
		cache.sections = []model.Section{}
	}
	cache.metadata = lf.Metadata
	return nil
}

// readListFile returns nil when the list file does not exist yet.
func (s *Store) readListFile(listID string) (*listFile, error) {
	b, err := os.ReadFile(s.listPath(listID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var lf listFile
	if err := json.Unmarshal(b, &lf); err != nil {
		return nil, fmt.Errorf("store: corrupt list file %s: %w", listID, err)
	}
	return &lf, nil
}

// saveListLocked writes the list file. The on-disk state is re-read first and
// its soft-deleted records merged with the active cache, so tombstones the
// cache never held survive restarts.
func (s *Store) saveListLocked(listID string) error {
	cache, ok := s.lists[listID]
	if !ok {
		return ErrListNotFound
	}

	deletedTemplates := map[string]model.Task{}
	deletedTasks := map[string]model.Task{}
	if existing, err := s.readListFile(listID); err == nil && existing != nil {
		for _, t := range existing.RecurringTemplates {
			if t.IsDeleted() {
				deletedTemplates[t.UID] = t
			}
		}
		for _, t := range existing.Tasks {
			if t.IsDeleted() {
				deletedTasks[t.UID] = t
			}
		}
	}

	lf := listFile{
		RecurringTemplates: make([]model.Task, 0, len(cache.templates)+len(deletedTemplates)),
		Tasks:              make([]model.Task, 0, len(cache.tasks)+len(deletedTasks)),
		Sections:           cache.sections,
		Metadata:           cache.metadata,
	}
	for _, t := range deletedTemplates {
		if _, active := cache.templates[t.UID]; !active {
			lf.RecurringTemplates = append(lf.RecurringTemplates, t)
		}
	}
	for _, t := range cache.templates {
		lf.RecurringTemplates = append(lf.RecurringTemplates, t)
	}
	for _, t := range deletedTasks {
		if _, active := cache.tasks[t.UID]; !active {
			lf.Tasks = append(lf.Tasks, t)
		}
	}
	for _, t := range cache.tasks {
		lf.Tasks = append(lf.Tasks, t)
	}

	return writeJSONFile(s.listPath(listID), lf)
}

func (s *Store) saveRegistryLocked() error {
	return writeJSONFile(s.registryPath(), s.registry)
}

// writeJSONFile writes atomically via a temp file in the same directory.
func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
