package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harborctl/sentinel/internal/catalog"
)

func openTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	c, err := catalog.Open(filepath.Join(dir, "catalog.sqlite"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

const sampleSeed = `
agents:
  - name: reviewer
    icon: "🔍"
    system_prompt: "review code"
    model: modelX
    file_read: true
sandbox_profiles:
  - name: default
    is_default: true
sandbox_rules:
  - profile: default
    operation: read
    pattern_kind: prefix
    pattern_value: /
    enabled: true
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestLoadParsesSeedFile(t *testing.T) {
	path := writeSeedFile(t, sampleSeed)
	sf, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(sf.Agents) != 1 || sf.Agents[0].Name != "reviewer" {
		t.Fatalf("Load() agents = %+v, want one named reviewer", sf.Agents)
	}
	if len(sf.SandboxProfiles) != 1 || !sf.SandboxProfiles[0].IsDefault {
		t.Fatalf("Load() sandbox_profiles = %+v, want one default", sf.SandboxProfiles)
	}
	if len(sf.SandboxRules) != 1 || sf.SandboxRules[0].ProfileName != "default" {
		t.Fatalf("Load() sandbox_rules = %+v, want one for profile default", sf.SandboxRules)
	}
}

func TestApplySeedsAgentsAndRules(t *testing.T) {
	cat := openTestCatalog(t)
	sf, err := Load(writeSeedFile(t, sampleSeed))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := Apply(cat, sf); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	agents, err := cat.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents() error = %v", err)
	}
	if len(agents) != 1 || agents[0].Name != "reviewer" {
		t.Fatalf("ListAgents() = %+v, want one named reviewer", agents)
	}

	profiles, err := cat.ListSandboxProfiles()
	if err != nil {
		t.Fatalf("ListSandboxProfiles() error = %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("ListSandboxProfiles() = %+v, want one profile", profiles)
	}

	rules, err := cat.RulesForProfile(profiles[0].ID)
	if err != nil {
		t.Fatalf("RulesForProfile() error = %v", err)
	}
	if len(rules) != 1 || rules[0].PatternValue != "/" {
		t.Fatalf("RulesForProfile() = %+v, want one rule for /", rules)
	}
}

func TestApplyIsIdempotentByName(t *testing.T) {
	cat := openTestCatalog(t)
	sf, err := Load(writeSeedFile(t, sampleSeed))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := Apply(cat, sf); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	if err := Apply(cat, sf); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}

	agents, err := cat.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents() error = %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("ListAgents() after repeated Apply() = %d agents, want 1", len(agents))
	}
}
