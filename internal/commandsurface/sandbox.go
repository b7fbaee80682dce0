package commandsurface

import (
	"time"

	"github.com/harborctl/sentinel/internal/sandbox"
	"github.com/harborctl/sentinel/internal/types"
)

// ListSandboxProfiles returns every stored profile, default first.
func (s *Surface) ListSandboxProfiles() ([]*types.SandboxProfile, error) {
	return s.Catalog.ListSandboxProfiles()
}

// CreateSandboxProfile persists a new named rule bundle.
func (s *Surface) CreateSandboxProfile(name string, isDefault bool) (*types.SandboxProfile, error) {
	p := &types.SandboxProfile{Name: name, IsDefault: isDefault}
	if err := s.Catalog.CreateSandboxProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetDefaultSandboxProfile makes id the sole default profile.
func (s *Surface) SetDefaultSandboxProfile(id string) error {
	return s.Catalog.SetDefaultSandboxProfile(id)
}

// ListSandboxRules returns every rule belonging to profileID.
func (s *Surface) ListSandboxRules(profileID string) ([]*types.SandboxRule, error) {
	return s.Catalog.RulesForProfile(profileID)
}

// UpsertSandboxRule inserts or updates a rule.
func (s *Surface) UpsertSandboxRule(r *types.SandboxRule) (*types.SandboxRule, error) {
	if err := s.Catalog.UpsertSandboxRule(r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteSandboxRule removes one rule by id.
func (s *Surface) DeleteSandboxRule(id string) error {
	return s.Catalog.DeleteSandboxRule(id)
}

// ListSandboxViolations returns every violation recorded since the given
// time; a zero value returns the full history.
func (s *Surface) ListSandboxViolations(since time.Time) ([]*types.Violation, error) {
	return s.Catalog.ViolationsSince(since)
}

// GetPlatformCapabilities reports which sandbox operation kinds this OS
// can actually enforce.
func (s *Surface) GetPlatformCapabilities() types.PlatformCapabilities {
	return sandbox.Capabilities()
}
