package ops

import (
	"os"
	"path/filepath"
	"testing"

	"chorekeep/internal/model"
	"chorekeep/internal/store"
)

func seedDataDir(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "data")
	s, err := store.New(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.CreateList("chores", "Chores"); err != nil {
		t.Fatalf("create list: %v", err)
	}
	task := model.NewTask("Laundry")
	task.PointsValue = 5
	if err := s.AddTask("chores", task); err != nil {
		t.Fatalf("add task: %v", err)
	}
	return dir
}

func TestBackupRestoreDataDir_RoundTrip(t *testing.T) {
	src := seedDataDir(t)

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := BackupDataDir(src, archive); err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("archive missing: %v", err)
	}

	restoreDir := filepath.Join(t.TempDir(), "restore")
	if err := RestoreDataDir(archive, restoreDir); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	restored, err := store.New(restoreDir, nil)
	if err != nil {
		t.Fatalf("open restored store: %v", err)
	}
	tasks := restored.TasksForList("chores")
	if len(tasks) != 1 || tasks[0].Summary != "Laundry" {
		t.Fatalf("restored data mismatch: %+v", tasks)
	}
}

func TestVerifyDataDir_CountsLists(t *testing.T) {
	src := seedDataDir(t)

	count, err := VerifyDataDir(src)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 list, got %d", count)
	}
}

func TestRestoreDataDir_RejectsTraversal(t *testing.T) {
	if _, err := sanitizeArchiveRelPath("../outside.json"); err == nil {
		t.Fatalf("expected traversal path to be rejected")
	}
	if _, err := sanitizeArchiveRelPath("/abs/path.json"); err == nil {
		t.Fatalf("expected absolute path to be rejected")
	}
}
