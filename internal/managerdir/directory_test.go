package managerdir

import (
	"testing"

	"github.com/harborctl/sentinel/internal/snapshot"
	"github.com/harborctl/sentinel/internal/types"
)

func newTestDirectory(t *testing.T) (*Directory, string) {
	t.Helper()
	stateDir := t.TempDir()
	return New(&snapshot.Store{StateDir: stateDir}), t.TempDir()
}

func TestGetOrCreateMintsOnceAndCaches(t *testing.T) {
	d, projectPath := newTestDirectory(t)

	m1, err := d.GetOrCreate("sess-1", "proj-1", projectPath, types.StrategySmart)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	m2, err := d.GetOrCreate("sess-1", "proj-1", projectPath, types.StrategySmart)
	if err != nil {
		t.Fatalf("second GetOrCreate() error = %v", err)
	}
	if m1 != m2 {
		t.Fatal("GetOrCreate() returned a different Manager on the second call for the same session")
	}
	if d.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", d.Count())
	}
}

func TestGetOnUncachedSessionMisses(t *testing.T) {
	d, _ := newTestDirectory(t)
	if _, ok := d.Get("unknown"); ok {
		t.Fatal("Get() reported a hit for a session never created")
	}
}

func TestRemoveDropsCachedManager(t *testing.T) {
	d, projectPath := newTestDirectory(t)
	if _, err := d.GetOrCreate("sess-1", "proj-1", projectPath, types.StrategyManual); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	d.Remove("sess-1")
	if _, ok := d.Get("sess-1"); ok {
		t.Fatal("Get() still reports a Manager after Remove()")
	}
}

func TestClearDropsEveryManager(t *testing.T) {
	d, projectPath := newTestDirectory(t)
	if _, err := d.GetOrCreate("sess-1", "proj-1", projectPath, types.StrategyManual); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if _, err := d.GetOrCreate("sess-2", "proj-2", projectPath, types.StrategyManual); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	d.Clear()
	if d.Count() != 0 {
		t.Fatalf("Count() after Clear() = %d, want 0", d.Count())
	}
}
