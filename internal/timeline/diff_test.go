package timeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harborctl/sentinel/internal/snapshot"
	"github.com/harborctl/sentinel/internal/types"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	stateDir := t.TempDir()
	projectPath := t.TempDir()
	store := &snapshot.Store{StateDir: stateDir}
	m, err := New(store, "sess-1", "proj-1", projectPath, types.StrategyManual)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m, projectPath
}

func writeProjectFile(t *testing.T, projectPath, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(projectPath, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write project file: %v", err)
	}
}

func TestDiffDetectsAddedFile(t *testing.T) {
	m, projectPath := newTestManager(t)
	rootID := m.GetTimeline().RootID

	writeProjectFile(t, projectPath, "a.txt", "hello")
	cp, err := m.CreateCheckpoint("add a.txt")
	if err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}

	diff, err := m.Diff(rootID, cp.ID)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(diff.Added) != 1 || diff.Added[0].Path != "a.txt" {
		t.Fatalf("Diff().Added = %+v, want one entry for a.txt", diff.Added)
	}
	if len(diff.Removed) != 0 || len(diff.Modified) != 0 {
		t.Fatalf("Diff() = %+v, want only an addition", diff)
	}
}

func TestDiffDetectsModifiedFile(t *testing.T) {
	m, projectPath := newTestManager(t)
	writeProjectFile(t, projectPath, "a.txt", "v1")
	cp1, err := m.CreateCheckpoint("v1")
	if err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}

	writeProjectFile(t, projectPath, "a.txt", "v2-longer-content")
	cp2, err := m.CreateCheckpoint("v2")
	if err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}

	diff, err := m.Diff(cp1.ID, cp2.ID)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(diff.Modified) != 1 || diff.Modified[0].Path != "a.txt" {
		t.Fatalf("Diff().Modified = %+v, want one entry for a.txt", diff.Modified)
	}
}

func TestCleanupOldNeverRemovesRootOrCurrent(t *testing.T) {
	m, projectPath := newTestManager(t)
	rootID := m.GetTimeline().RootID

	writeProjectFile(t, projectPath, "a.txt", "v1")
	cp1, err := m.CreateCheckpoint("v1")
	if err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}
	writeProjectFile(t, projectPath, "a.txt", "v2")
	cp2, err := m.CreateCheckpoint("v2")
	if err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}

	if _, err := m.CleanupOld(0); err != nil {
		t.Fatalf("CleanupOld() error = %v", err)
	}

	layout := snapshot.NewLayout(m.store.StateDir, m.ProjectID, m.SessionID)
	for _, id := range []string{rootID, cp2.ID} {
		if _, err := os.Stat(layout.MetadataFile(id)); err != nil {
			t.Fatalf("expected checkpoint %s to survive CleanupOld(): %v", id, err)
		}
	}
	if _, err := os.Stat(layout.MetadataFile(cp1.ID)); err == nil {
		t.Fatalf("expected checkpoint %s to be removed by CleanupOld()", cp1.ID)
	}
}
