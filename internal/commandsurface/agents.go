package commandsurface

import "github.com/harborctl/sentinel/internal/types"

// ListAgents returns every stored agent template.
func (s *Surface) ListAgents() ([]*types.Agent, error) {
	return s.Catalog.ListAgents()
}

// CreateAgent validates and persists a new agent template (spec §6).
func (s *Surface) CreateAgent(name, icon, systemPrompt, defaultTask, model string, perms types.Permissions) (*types.Agent, error) {
	a := &types.Agent{
		Name: name, Icon: icon, SystemPrompt: systemPrompt, DefaultTask: defaultTask, Model: model,
		SandboxEnabled: perms.SandboxEnabled, FileRead: perms.FileRead, FileWrite: perms.FileWrite, Network: perms.Network,
	}
	if err := s.Catalog.CreateAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAgent overwrites an existing agent's mutable fields.
func (s *Surface) UpdateAgent(id, name, icon, systemPrompt, defaultTask, model string, perms types.Permissions) (*types.Agent, error) {
	a := &types.Agent{
		ID: id, Name: name, Icon: icon, SystemPrompt: systemPrompt, DefaultTask: defaultTask, Model: model,
		SandboxEnabled: perms.SandboxEnabled, FileRead: perms.FileRead, FileWrite: perms.FileWrite, Network: perms.Network,
	}
	if err := s.Catalog.UpdateAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAgent removes an agent, failing with a typed Conflict if a run
// referencing it is still running (spec §3).
func (s *Surface) DeleteAgent(id string) error {
	return s.Catalog.DeleteAgent(id)
}
