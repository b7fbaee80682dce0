package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/types"
)

func openTest(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "catalog.sqlite"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCreateAndGetAgent(t *testing.T) {
	c := openTest(t)

	a := &types.Agent{Name: "reviewer", Model: "modelX", FileRead: true}
	if err := c.CreateAgent(a); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	if a.ID == "" {
		t.Fatal("CreateAgent() did not assign an id")
	}

	got, err := c.GetAgent(a.ID)
	if err != nil {
		t.Fatalf("GetAgent() error = %v", err)
	}
	if got.Name != "reviewer" || !got.FileRead {
		t.Errorf("GetAgent() = %+v, want matching reviewer", got)
	}
}

func TestCreateAgentDuplicateNameIsConflict(t *testing.T) {
	c := openTest(t)

	if err := c.CreateAgent(&types.Agent{Name: "dup"}); err != nil {
		t.Fatalf("first CreateAgent() error = %v", err)
	}
	err := c.CreateAgent(&types.Agent{Name: "dup"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("CreateAgent() error = %v, want KindConflict", err)
	}
}

func TestDeleteAgentWithRunningRunIsConflict(t *testing.T) {
	c := openTest(t)

	a := &types.Agent{Name: "busy"}
	if err := c.CreateAgent(a); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	r := &types.Run{AgentID: a.ID, ProjectPath: "/tmp/proj", Status: types.RunRunning}
	if err := c.CreateRun(r); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	if err := c.DeleteAgent(a.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("DeleteAgent() error = %v, want KindConflict", err)
	}
}

func TestRunLifecycleTransitions(t *testing.T) {
	c := openTest(t)

	r := &types.Run{ProjectPath: "/tmp/proj", Status: types.RunPending}
	if err := c.CreateRun(r); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	if err := c.UpdateRunStatus(r.ID, types.RunRunning, 4242, ""); err != nil {
		t.Fatalf("UpdateRunStatus(running) error = %v", err)
	}
	running, err := c.RunningRuns()
	if err != nil {
		t.Fatalf("RunningRuns() error = %v", err)
	}
	if len(running) != 1 || running[0].PID != 4242 {
		t.Fatalf("RunningRuns() = %+v, want single run with pid 4242", running)
	}

	if err := c.UpdateRunStatus(r.ID, types.RunCompleted, 0, ""); err != nil {
		t.Fatalf("UpdateRunStatus(completed) error = %v", err)
	}
	got, err := c.GetRun(r.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != types.RunCompleted || got.CompletedAt == nil {
		t.Fatalf("GetRun() = %+v, want completed with CompletedAt set", got)
	}

	running, err = c.RunningRuns()
	if err != nil {
		t.Fatalf("RunningRuns() error = %v", err)
	}
	if len(running) != 0 {
		t.Fatalf("RunningRuns() = %+v, want empty after completion", running)
	}
}

func TestSessionTokenSetOnce(t *testing.T) {
	c := openTest(t)

	r := &types.Run{ProjectPath: "/tmp/proj"}
	if err := c.CreateRun(r); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if err := c.SetRunSessionToken(r.ID, "session-1"); err != nil {
		t.Fatalf("SetRunSessionToken() error = %v", err)
	}
	if err := c.SetRunSessionToken(r.ID, "session-2"); err != nil {
		t.Fatalf("SetRunSessionToken() error = %v", err)
	}

	got, err := c.GetRun(r.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.SessionToken != "session-1" {
		t.Errorf("SessionToken = %q, want it to stick to the first value set", got.SessionToken)
	}
}

func TestExactlyOneDefaultSandboxProfile(t *testing.T) {
	c := openTest(t)

	p1 := &types.SandboxProfile{Name: "restrictive", IsDefault: true}
	if err := c.CreateSandboxProfile(p1); err != nil {
		t.Fatalf("CreateSandboxProfile(p1) error = %v", err)
	}
	p2 := &types.SandboxProfile{Name: "permissive", IsDefault: true}
	if err := c.CreateSandboxProfile(p2); err != nil {
		t.Fatalf("CreateSandboxProfile(p2) error = %v", err)
	}

	profiles, err := c.ListSandboxProfiles()
	if err != nil {
		t.Fatalf("ListSandboxProfiles() error = %v", err)
	}
	defaults := 0
	for _, p := range profiles {
		if p.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("found %d default profiles, want exactly 1", defaults)
	}

	def, err := c.DefaultSandboxProfile()
	if err != nil {
		t.Fatalf("DefaultSandboxProfile() error = %v", err)
	}
	if def.ID != p2.ID {
		t.Errorf("default profile = %q, want the most recently set default %q", def.ID, p2.ID)
	}
}

func TestDeleteSandboxProfileCascades(t *testing.T) {
	c := openTest(t)

	p := &types.SandboxProfile{Name: "scratch"}
	if err := c.CreateSandboxProfile(p); err != nil {
		t.Fatalf("CreateSandboxProfile() error = %v", err)
	}
	rule := &types.SandboxRule{ProfileID: p.ID, Operation: types.OpFileReadAll, PatternKind: types.PatternSubpath, PatternValue: "{{PROJECT_PATH}}", Enabled: true}
	if err := c.UpsertSandboxRule(rule); err != nil {
		t.Fatalf("UpsertSandboxRule() error = %v", err)
	}
	if err := c.RecordViolation(&types.Violation{ProfileID: p.ID, RunID: "r1", Operation: types.OpFileReadAll, PatternValue: "/etc/shadow"}); err != nil {
		t.Fatalf("RecordViolation() error = %v", err)
	}

	if err := c.DeleteSandboxProfile(p.ID); err != nil {
		t.Fatalf("DeleteSandboxProfile() error = %v", err)
	}

	rules, err := c.RulesForProfile(p.ID)
	if err != nil {
		t.Fatalf("RulesForProfile() error = %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("RulesForProfile() = %v, want empty after cascade delete", rules)
	}
}

func TestViolationsSince(t *testing.T) {
	c := openTest(t)

	past := time.Now().Add(-time.Hour)
	if err := c.RecordViolation(&types.Violation{ProfileID: "p", RunID: "r", Operation: types.OpNetworkOutbound, PatternValue: "1.2.3.4:443"}); err != nil {
		t.Fatalf("RecordViolation() error = %v", err)
	}

	got, err := c.ViolationsSince(past)
	if err != nil {
		t.Fatalf("ViolationsSince() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ViolationsSince() = %v, want 1 violation", got)
	}
}

func TestAppSettingsRoundTrip(t *testing.T) {
	c := openTest(t)

	if _, err := c.GetAppSetting("missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("GetAppSetting(missing) error = %v, want KindNotFound", err)
	}
	if err := c.SetAppSetting("checkpoint_strategy", "smart"); err != nil {
		t.Fatalf("SetAppSetting() error = %v", err)
	}
	got, err := c.GetAppSetting("checkpoint_strategy")
	if err != nil {
		t.Fatalf("GetAppSetting() error = %v", err)
	}
	if got != "smart" {
		t.Errorf("GetAppSetting() = %q, want %q", got, "smart")
	}
}
