package commandsurface

import (
	"path/filepath"
	"testing"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/catalog"
	"github.com/harborctl/sentinel/internal/managerdir"
	"github.com/harborctl/sentinel/internal/sandbox"
	"github.com/harborctl/sentinel/internal/snapshot"
	"github.com/harborctl/sentinel/internal/types"
)

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.sqlite"))
	if err != nil {
		t.Fatalf("catalog.Open() error = %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	store := &snapshot.Store{StateDir: dir}
	return &Surface{
		Catalog:  cat,
		Builder:  sandbox.NewBuilder(),
		Managers: managerdir.New(store),
		Store:    store,
		HomeDir:  dir,
	}
}

func TestAgentCRUDRoundTrips(t *testing.T) {
	s := newTestSurface(t)

	a, err := s.CreateAgent("reviewer", "🔍", "review code", "review the diff", "modelX", types.Permissions{FileRead: true})
	if err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	if a.ID == "" {
		t.Fatal("CreateAgent() did not assign an id")
	}

	agents, err := s.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents() error = %v", err)
	}
	if len(agents) != 1 || agents[0].Name != "reviewer" {
		t.Fatalf("ListAgents() = %+v, want one named reviewer", agents)
	}

	updated, err := s.UpdateAgent(a.ID, "reviewer-v2", a.Icon, a.SystemPrompt, a.DefaultTask, a.Model, types.Permissions{FileRead: true, Network: true})
	if err != nil {
		t.Fatalf("UpdateAgent() error = %v", err)
	}
	if updated.Name != "reviewer-v2" || !updated.Network {
		t.Fatalf("UpdateAgent() = %+v, want name reviewer-v2 with network enabled", updated)
	}

	if err := s.DeleteAgent(a.ID); err != nil {
		t.Fatalf("DeleteAgent() error = %v", err)
	}
	agents, err = s.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents() after delete error = %v", err)
	}
	if len(agents) != 0 {
		t.Fatalf("ListAgents() after delete = %+v, want empty", agents)
	}
}

func TestSandboxProfileAndRuleCRUD(t *testing.T) {
	s := newTestSurface(t)

	p, err := s.CreateSandboxProfile("default", true)
	if err != nil {
		t.Fatalf("CreateSandboxProfile() error = %v", err)
	}

	rule, err := s.UpsertSandboxRule(&types.SandboxRule{
		ProfileID: p.ID, Operation: types.OpFileReadAll, PatternKind: types.PatternPrefix, PatternValue: "/", Enabled: true,
	})
	if err != nil {
		t.Fatalf("UpsertSandboxRule() error = %v", err)
	}

	rules, err := s.ListSandboxRules(p.ID)
	if err != nil {
		t.Fatalf("ListSandboxRules() error = %v", err)
	}
	if len(rules) != 1 || rules[0].ID != rule.ID {
		t.Fatalf("ListSandboxRules() = %+v, want one rule matching %s", rules, rule.ID)
	}

	if err := s.DeleteSandboxRule(rule.ID); err != nil {
		t.Fatalf("DeleteSandboxRule() error = %v", err)
	}
	rules, err = s.ListSandboxRules(p.ID)
	if err != nil {
		t.Fatalf("ListSandboxRules() after delete error = %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("ListSandboxRules() after delete = %+v, want empty", rules)
	}
}

func TestGetPlatformCapabilitiesReturnsNonNilResult(t *testing.T) {
	s := newTestSurface(t)
	caps := s.GetPlatformCapabilities()
	if caps.OS == "" {
		t.Fatalf("GetPlatformCapabilities() = %+v, want a populated OS field", caps)
	}
}

func TestCheckpointSettingsRoundTripThroughSurface(t *testing.T) {
	s := newTestSurface(t)
	projectPath := t.TempDir()

	auto, strategy, err := s.GetCheckpointSettings("sess-1", "", projectPath)
	if err != nil {
		t.Fatalf("GetCheckpointSettings() error = %v", err)
	}
	if strategy != DefaultAutoCheckpointStrategy || !auto {
		t.Fatalf("GetCheckpointSettings() = (%v, %v), want (true, %v)", auto, strategy, DefaultAutoCheckpointStrategy)
	}

	if err := s.UpdateCheckpointSettings("sess-1", "", projectPath, false, types.StrategyPerPrompt); err != nil {
		t.Fatalf("UpdateCheckpointSettings() error = %v", err)
	}

	auto, strategy, err = s.GetCheckpointSettings("sess-1", "", projectPath)
	if err != nil {
		t.Fatalf("GetCheckpointSettings() after update error = %v", err)
	}
	if auto || strategy != types.StrategyPerPrompt {
		t.Fatalf("GetCheckpointSettings() after update = (%v, %v), want (false, per_prompt)", auto, strategy)
	}
}

func TestGetCheckpointDiffWithoutLiveManagerIsNotFound(t *testing.T) {
	s := newTestSurface(t)
	_, err := s.GetCheckpointDiff("a", "b", "never-touched-session", "proj-1")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("GetCheckpointDiff() error = %v, want KindNotFound", err)
	}
}

func TestCreateCheckpointThenCleanup(t *testing.T) {
	s := newTestSurface(t)
	projectPath := t.TempDir()

	if _, err := s.CreateCheckpoint("sess-1", "", projectPath, 0, "first"); err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}
	if _, err := s.CreateCheckpoint("sess-1", "", projectPath, 0, "second"); err != nil {
		t.Fatalf("CreateCheckpoint() error = %v", err)
	}

	removed, err := s.CleanupOldCheckpoints("sess-1", "", projectPath, 1)
	if err != nil {
		t.Fatalf("CleanupOldCheckpoints() error = %v", err)
	}
	if removed < 0 {
		t.Fatalf("CleanupOldCheckpoints() removed = %d, want >= 0", removed)
	}
}
