package registry

import (
	"testing"
	"time"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/types"
)

func TestRegisterDuplicateIsConflict(t *testing.T) {
	r := New()
	info := types.ProcessInfo{RunID: "run-1", PID: 111}
	if err := r.Register(info, nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	err := r.Register(info, nil)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("Register() duplicate error = %v, want KindConflict", err)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := New()
	r.Unregister("nonexistent")
	r.Unregister("nonexistent")
}

func TestListReturnsSnapshot(t *testing.T) {
	r := New()
	r.Register(types.ProcessInfo{RunID: "a", PID: 1}, nil)
	r.Register(types.ProcessInfo{RunID: "b", PID: 2}, nil)

	got := r.List()
	if len(got) != 2 {
		t.Fatalf("List() = %v, want 2 entries", got)
	}

	r.Unregister("a")
	if len(r.List()) != 1 {
		t.Fatalf("List() after Unregister = %v, want 1 entry", r.List())
	}
}

func TestAppendAndReadOutputRingBufferEviction(t *testing.T) {
	r := New()
	r.Register(types.ProcessInfo{RunID: "run-1"}, nil)
	// Force a tiny buffer to test eviction without allocating 1 MiB.
	r.entries["run-1"].output = newRingBuffer(8)

	r.AppendOutput("run-1", []byte("abcdefgh"))
	got, err := r.ReadOutput("run-1")
	if err != nil {
		t.Fatalf("ReadOutput() error = %v", err)
	}
	if got != "abcdefgh" {
		t.Fatalf("ReadOutput() = %q, want %q", got, "abcdefgh")
	}

	r.AppendOutput("run-1", []byte("ij"))
	got, _ = r.ReadOutput("run-1")
	if got != "cdefghij" {
		t.Fatalf("ReadOutput() after overflow = %q, want %q", got, "cdefghij")
	}
}

func TestReadOutputUnregisteredRunIsNotFound(t *testing.T) {
	r := New()
	_, err := r.ReadOutput("ghost")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("ReadOutput() error = %v, want KindNotFound", err)
	}
}

func TestKillWithNoHandleReturnsFalse(t *testing.T) {
	r := New()
	r.Register(types.ProcessInfo{RunID: "run-1"}, nil)
	if r.Kill("run-1") {
		t.Fatal("Kill() = true, want false for a run with no live handle")
	}
	if r.Kill("ghost") {
		t.Fatal("Kill() = true, want false for an unregistered run")
	}
}

type fakeCatalog struct {
	running []*types.Run
	updated map[string]types.RunStatus
}

func (f *fakeCatalog) RunningRuns() ([]*types.Run, error) { return f.running, nil }
func (f *fakeCatalog) UpdateRunStatus(id string, status types.RunStatus, pid int, errMsg string) error {
	if f.updated == nil {
		f.updated = map[string]types.RunStatus{}
	}
	f.updated[id] = status
	return nil
}
func (f *fakeCatalog) SetAppSetting(key, value string) error { return nil }

func TestReconcileCancelsDeadRuns(t *testing.T) {
	reg := New()
	// Only a dead run is seeded: it is not in the registry and pid 999999
	// does not exist, so the sweep must cancel it.
	cat := &fakeCatalog{running: []*types.Run{
		{ID: "run-dead", PID: 999999, Status: types.RunRunning},
	}}
	rec := NewReconciler(reg, cat)

	done := make(chan struct{})
	go func() {
		rec.sweep()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep() did not return in time")
	}

	if cat.updated["run-dead"] != types.RunCancelled {
		t.Fatalf("UpdateRunStatus for run-dead = %v, want RunCancelled", cat.updated["run-dead"])
	}
}
