// Package config loads the YAML seed file that populates the Catalog's
// agent templates and sandbox rules on first startup, grounded on the
// teacher's LoadTeamsConfig (gopkg.in/yaml.v3-based config loading).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harborctl/sentinel/internal/catalog"
	"github.com/harborctl/sentinel/internal/types"
)

// AgentSeed is one agent template entry in the seed file.
type AgentSeed struct {
	Name           string `yaml:"name"`
	Icon           string `yaml:"icon"`
	SystemPrompt   string `yaml:"system_prompt"`
	DefaultTask    string `yaml:"default_task"`
	Model          string `yaml:"model"`
	SandboxEnabled bool   `yaml:"sandbox_enabled"`
	FileRead       bool   `yaml:"file_read"`
	FileWrite      bool   `yaml:"file_write"`
	Network        bool   `yaml:"network"`
}

// RuleSeed is one sandbox rule entry, attached to the named profile.
type RuleSeed struct {
	ProfileName  string   `yaml:"profile"`
	Operation    string   `yaml:"operation"`
	PatternKind  string   `yaml:"pattern_kind"`
	PatternValue string   `yaml:"pattern_value"`
	Enabled      bool     `yaml:"enabled"`
	PlatformTags []string `yaml:"platform_tags"`
}

// ProfileSeed is one named sandbox rule bundle.
type ProfileSeed struct {
	Name      string `yaml:"name"`
	IsDefault bool   `yaml:"is_default"`
}

// SeedFile is the on-disk shape of the optional startup seed document.
type SeedFile struct {
	Agents          []AgentSeed   `yaml:"agents"`
	SandboxProfiles []ProfileSeed `yaml:"sandbox_profiles"`
	SandboxRules    []RuleSeed    `yaml:"sandbox_rules"`
}

// Load reads and parses path into a SeedFile.
func Load(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read seed file: %w", err)
	}
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("config: parse seed file: %w", err)
	}
	return &sf, nil
}

// Apply idempotently creates every agent template and sandbox
// profile/rule named in sf that the catalog does not already carry
// (matched by name), used once at daemon startup to seed a fresh
// catalog database.
func Apply(cat *catalog.Catalog, sf *SeedFile) error {
	existingAgents, err := cat.ListAgents()
	if err != nil {
		return fmt.Errorf("config: list existing agents: %w", err)
	}
	haveAgent := make(map[string]bool, len(existingAgents))
	for _, a := range existingAgents {
		haveAgent[a.Name] = true
	}
	for _, as := range sf.Agents {
		if haveAgent[as.Name] {
			continue
		}
		a := &types.Agent{
			Name: as.Name, Icon: as.Icon, SystemPrompt: as.SystemPrompt,
			DefaultTask: as.DefaultTask, Model: as.Model,
			SandboxEnabled: as.SandboxEnabled, FileRead: as.FileRead,
			FileWrite: as.FileWrite, Network: as.Network,
		}
		if err := cat.CreateAgent(a); err != nil {
			return fmt.Errorf("config: seed agent %q: %w", as.Name, err)
		}
	}

	existingProfiles, err := cat.ListSandboxProfiles()
	if err != nil {
		return fmt.Errorf("config: list existing sandbox profiles: %w", err)
	}
	profileIDByName := make(map[string]string, len(existingProfiles))
	for _, p := range existingProfiles {
		profileIDByName[p.Name] = p.ID
	}
	for _, ps := range sf.SandboxProfiles {
		if _, ok := profileIDByName[ps.Name]; ok {
			continue
		}
		p := &types.SandboxProfile{Name: ps.Name, IsDefault: ps.IsDefault}
		if err := cat.CreateSandboxProfile(p); err != nil {
			return fmt.Errorf("config: seed sandbox profile %q: %w", ps.Name, err)
		}
		profileIDByName[ps.Name] = p.ID
	}

	for _, rs := range sf.SandboxRules {
		profileID, ok := profileIDByName[rs.ProfileName]
		if !ok {
			return fmt.Errorf("config: sandbox rule references unknown profile %q", rs.ProfileName)
		}
		rule := &types.SandboxRule{
			ProfileID:    profileID,
			Operation:    types.OperationKind(rs.Operation),
			PatternKind:  types.PatternKind(rs.PatternKind),
			PatternValue: rs.PatternValue,
			Enabled:      rs.Enabled,
			PlatformTags: rs.PlatformTags,
		}
		if err := cat.UpsertSandboxRule(rule); err != nil {
			return fmt.Errorf("config: seed sandbox rule for %q: %w", rs.ProfileName, err)
		}
	}

	return nil
}
