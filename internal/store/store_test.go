package store

import (
	"testing"
	"time"

	"chorekeep/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.CreateList("chores", "Chores"); err != nil {
		t.Fatalf("create list: %v", err)
	}
	return s
}

func TestStore_AddAndGetTask(t *testing.T) {
	s := newTestStore(t)

	task := model.NewTask("sweep floor")
	if err := s.AddTask("chores", task); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.GetTask("chores", task.UID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Summary != "sweep floor" {
		t.Fatalf("unexpected summary: %q", got.Summary)
	}
}

func TestStore_TemplatesKeptApartFromTasks(t *testing.T) {
	s := newTestStore(t)

	template := model.NewTask("water plants")
	template.IsTemplate = true
	template.RRule = "FREQ=DAILY"
	if err := s.AddTask("chores", template); err != nil {
		t.Fatalf("add template: %v", err)
	}

	instance := model.NewTask("water plants")
	instance.ParentUID = template.UID
	if err := s.AddTask("chores", instance); err != nil {
		t.Fatalf("add instance: %v", err)
	}

	if _, err := s.GetTask("chores", template.UID); err != ErrTaskNotFound {
		t.Fatalf("template must not be visible as a task, got err=%v", err)
	}
	if _, err := s.GetTemplate("chores", template.UID); err != nil {
		t.Fatalf("get template: %v", err)
	}
	if n := len(s.TasksForList("chores")); n != 1 {
		t.Fatalf("expected 1 task in listing, got %d", n)
	}
	if n := len(s.InstancesForTemplate("chores", template.UID)); n != 1 {
		t.Fatalf("expected 1 instance, got %d", n)
	}
}

func TestStore_SoftDeleteHidesButPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.CreateList("chores", "Chores"); err != nil {
		t.Fatalf("create list: %v", err)
	}

	task := model.NewTask("mow lawn")
	if err := s.AddTask("chores", task); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.DeleteTask("chores", task.UID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetTask("chores", task.UID); err != ErrTaskNotFound {
		t.Fatalf("deleted task must be invisible, got err=%v", err)
	}

	// Tombstone survives a reload.
	reloaded, err := New(dir, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := reloaded.GetTask("chores", task.UID); err != ErrTaskNotFound {
		t.Fatalf("deleted task visible after reload")
	}
	lf, err := reloaded.readListFile("chores")
	if err != nil || lf == nil {
		t.Fatalf("read list file: %v", err)
	}
	found := false
	for _, pt := range lf.Tasks {
		if pt.UID == task.UID {
			found = true
			if !pt.IsDeleted() {
				t.Fatalf("persisted record missing tombstone")
			}
		}
	}
	if !found {
		t.Fatalf("tombstone dropped from persisted form")
	}
}

func TestStore_SaveMergesTombstonesAcrossWrites(t *testing.T) {
	s := newTestStore(t)

	doomed := model.NewTask("doomed")
	if err := s.AddTask("chores", doomed); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.DeleteTask("chores", doomed.UID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// A later unrelated write must not drop the tombstone.
	other := model.NewTask("other")
	if err := s.AddTask("chores", other); err != nil {
		t.Fatalf("add other: %v", err)
	}

	lf, err := s.readListFile("chores")
	if err != nil || lf == nil {
		t.Fatalf("read list file: %v", err)
	}
	found := false
	for _, pt := range lf.Tasks {
		if pt.UID == doomed.UID && pt.IsDeleted() {
			found = true
		}
	}
	if !found {
		t.Fatalf("tombstone lost after unrelated save")
	}
}

func TestStore_DeleteRecurringKeepsCompletedHistory(t *testing.T) {
	s := newTestStore(t)

	template := model.NewTask("laundry")
	template.IsTemplate = true
	template.RRule = "FREQ=WEEKLY"
	if err := s.AddTask("chores", template); err != nil {
		t.Fatalf("add template: %v", err)
	}

	done := model.NewTask("laundry")
	done.ParentUID = template.UID
	done.OccurrenceIndex = 0
	done.Status = model.StatusCompleted
	if err := s.AddTask("chores", done); err != nil {
		t.Fatalf("add done: %v", err)
	}

	pending := model.NewTask("laundry")
	pending.ParentUID = template.UID
	pending.OccurrenceIndex = 1
	if err := s.AddTask("chores", pending); err != nil {
		t.Fatalf("add pending: %v", err)
	}

	deleted, err := s.DeleteRecurringTaskAndInstances("chores", pending.UID)
	if err != nil {
		t.Fatalf("delete recurring: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("expected template + pending instance deleted, got %v", deleted)
	}
	if _, err := s.GetTask("chores", done.UID); err != nil {
		t.Fatalf("completed history must survive: %v", err)
	}
	if _, err := s.GetTemplate("chores", template.UID); err != ErrTaskNotFound {
		t.Fatalf("template must be gone, got err=%v", err)
	}
}

func TestStore_ArchiveOldInstances(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	old := model.NewTask("ancient chore")
	old.Status = model.StatusCompleted
	old.Modified = now.Add(-40 * 24 * time.Hour)
	if err := s.AddTask("chores", old); err != nil {
		t.Fatalf("add old: %v", err)
	}
	// AddTask persisted it; rewrite the modified stamp directly in the file
	// path by updating through the cache.
	old2, _ := s.GetTask("chores", old.UID)
	old2.Modified = now.Add(-40 * 24 * time.Hour)
	if err := s.UpdateTask("chores", old2); err != nil {
		t.Fatalf("update: %v", err)
	}

	fresh := model.NewTask("recent chore")
	fresh.Status = model.StatusCompleted
	if err := s.AddTask("chores", fresh); err != nil {
		t.Fatalf("add fresh: %v", err)
	}

	n, err := s.ArchiveOldInstances("chores", 30*24*time.Hour, now)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 archived, got %d", n)
	}

	archived, err := s.ArchivedTasks("chores")
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if len(archived) != 1 || archived[0].UID != old.UID {
		t.Fatalf("unexpected archive contents: %+v", archived)
	}
	if _, err := s.GetTask("chores", old.UID); err != ErrTaskNotFound {
		t.Fatalf("archived task still in list")
	}
	if _, err := s.GetTask("chores", fresh.UID); err != nil {
		t.Fatalf("fresh task must stay: %v", err)
	}

	// Second sweep in the same period is a no-op.
	n, err = s.ArchiveOldInstances("chores", 30*24*time.Hour, now)
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent sweep, got n=%d err=%v", n, err)
	}
}

func TestStore_Sections(t *testing.T) {
	s := newTestStore(t)

	sections := []model.Section{
		{ID: "sec-a", Name: "Alice", SortOrder: 1, PersonID: "person.alice"},
		{ID: "sec-b", Name: "Bob", SortOrder: 2, PersonID: "person.bob"},
	}
	if err := s.SetSections("chores", sections); err != nil {
		t.Fatalf("set sections: %v", err)
	}
	if got := s.DefaultSectionID("chores"); got != "sec-b" {
		t.Fatalf("expected highest sort order as default, got %q", got)
	}
	if got := s.SectionsForList("chores"); len(got) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(got))
	}
}

func TestStore_ListSyncInfo(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.ListSyncInfo("chores", "ticktick"); ok {
		t.Fatalf("unmapped list must report no sync info")
	}
	info := model.ListSyncInfo{ProjectID: "proj-1", Status: "synced"}
	if err := s.SetListSyncInfo("chores", "ticktick", info); err != nil {
		t.Fatalf("set sync info: %v", err)
	}
	got, ok := s.ListSyncInfo("chores", "ticktick")
	if !ok || got.ProjectID != "proj-1" {
		t.Fatalf("unexpected sync info: %+v ok=%v", got, ok)
	}
}

func TestStore_ValidationRejected(t *testing.T) {
	s := newTestStore(t)

	bad := model.NewTask("bad")
	bad.IsTemplate = true
	bad.RRule = "FREQ=DAILY"
	due := time.Now()
	bad.Due = &due

	if err := s.AddTask("chores", bad); err == nil {
		t.Fatalf("expected validation error for template with due date")
	}
}

func TestStore_UnknownList(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddTask("nope", model.NewTask("x")); err != ErrListNotFound {
		t.Fatalf("expected ErrListNotFound, got %v", err)
	}
}
