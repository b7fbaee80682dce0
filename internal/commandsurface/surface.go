// Package commandsurface implements the Command Surface (spec §4.10):
// the thin RPC layer the GUI calls. Every handler is a short adapter —
// argument validation, then a catalog/registry/manager call, then a
// typed response — and none holds a lock across an awaited I/O
// operation that touches a different subsystem.
package commandsurface

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/catalog"
	"github.com/harborctl/sentinel/internal/eventbus"
	"github.com/harborctl/sentinel/internal/managerdir"
	"github.com/harborctl/sentinel/internal/outputrouter"
	"github.com/harborctl/sentinel/internal/procsup"
	"github.com/harborctl/sentinel/internal/registry"
	"github.com/harborctl/sentinel/internal/sandbox"
	"github.com/harborctl/sentinel/internal/snapshot"
	"github.com/harborctl/sentinel/internal/types"
)

// directSessionPermissions is the effective permission four-tuple for
// execute_session/continue_session, which have no backing Agent row to
// carry permission toggles: full local confinement with no network,
// matching the safest posture a GUI-launched ad hoc session gets by
// default (spec §6's execute_session/continue_session take no
// permission arguments of their own).
var directSessionPermissions = types.Permissions{
	SandboxEnabled: true,
	FileRead:       true,
	FileWrite:      true,
	Network:        false,
}

// DefaultAutoCheckpointStrategy is the strategy new sessions start with
// when the Manager Directory has to mint a fresh Timeline Manager.
var DefaultAutoCheckpointStrategy = types.StrategySmart

// Surface wires every core subsystem behind the RPC operations of spec
// §6. Constructed once at startup and passed to handlers via dependency
// injection — never reached through ambient globals (spec §9).
type Surface struct {
	Catalog    *catalog.Catalog
	Registry   *registry.Registry
	Supervisor *procsup.Supervisor
	Router     *outputrouter.Router
	Bus        *eventbus.Bus
	Builder    *sandbox.Builder
	Managers   *managerdir.Directory
	Store      *snapshot.Store
	HomeDir    string

	// ExtraEnvAllowList is the configured extra inherited environment
	// variable names every spawned run's BuildEnv also admits (spec §6).
	ExtraEnvAllowList []string
}

func (s *Surface) homeDir() string {
	if s.HomeDir != "" {
		return s.HomeDir
	}
	home, _ := os.UserHomeDir()
	return home
}

// effectiveProfile builds the sandbox profile (C2) for perms against
// profile rules, resolving the default profile when profileID is empty.
func (s *Surface) effectiveProfile(profileID, projectPath string, perms types.Permissions) (*sandbox.Profile, error) {
	var profile *types.SandboxProfile
	var err error
	if profileID != "" {
		profile, err = s.lookupProfile(profileID)
	} else {
		profile, err = s.Catalog.DefaultSandboxProfile()
	}
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			// No profile configured at all: an empty rule set still
			// produces a valid (if minimal) profile via the builder's
			// guarantee clause.
			return s.Builder.Build(sandbox.Input{Permissions: perms, ProjectPath: projectPath, HomeDir: s.homeDir()})
		}
		return nil, err
	}

	rules, err := s.Catalog.RulesForProfile(profile.ID)
	if err != nil {
		return nil, err
	}
	return s.Builder.Build(sandbox.Input{Rules: rules, Permissions: perms, ProjectPath: projectPath, HomeDir: s.homeDir()})
}

func (s *Surface) lookupProfile(id string) (*types.SandboxProfile, error) {
	profiles, err := s.Catalog.ListSandboxProfiles()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "sandbox profile not found: "+id)
}

// spawnParams bundles one run's launch parameters, shared by
// execute_agent/execute_session/continue_session.
type spawnParams struct {
	AgentID      string
	DisplayName  string
	Icon         string
	ProjectPath  string
	Task         string
	SystemPrompt string
	Model        string
	Perms        types.Permissions
	ResumeToken  string
	Continue     bool
}

// spawn implements the shared C10→(C1,C2,C3,C4,C5) control flow
// described in spec §2: create a pending run row, build the sandbox
// profile, spawn the child, register it live, and start the Output
// Router's pumps. Spawn failures leave a failed run row rather than
// propagating a dangling pending one.
func (s *Surface) spawn(p spawnParams) (string, error) {
	run := &types.Run{
		ID:          uuid.New().String(),
		AgentID:     p.AgentID,
		DisplayName: p.DisplayName,
		Icon:        p.Icon,
		Task:        p.Task,
		Model:       p.Model,
		ProjectPath: p.ProjectPath,
		Status:      types.RunPending,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.Catalog.CreateRun(run); err != nil {
		return "", err
	}

	profile, err := s.effectiveProfile("", p.ProjectPath, p.Perms)
	if err != nil {
		_ = s.Catalog.UpdateRunStatus(run.ID, types.RunFailed, 0, err.Error())
		return run.ID, err
	}

	handle, err := s.Supervisor.Spawn(run.ID, procsup.Spec{
		Task:              p.Task,
		SystemPrompt:      p.SystemPrompt,
		Model:             p.Model,
		ProjectPath:       p.ProjectPath,
		ResumeToken:       p.ResumeToken,
		Continue:          p.Continue,
		ExtraEnvAllowList: s.ExtraEnvAllowList,
	}, profile)
	if err != nil {
		_ = s.Catalog.UpdateRunStatus(run.ID, types.RunFailed, 0, err.Error())
		return run.ID, err
	}

	if err := s.Catalog.UpdateRunStatus(run.ID, types.RunRunning, handle.PID, ""); err != nil {
		_ = handle.Kill()
		return run.ID, err
	}

	info := types.ProcessInfo{
		RunID: run.ID, AgentID: p.AgentID, PID: handle.PID,
		ProjectPath: p.ProjectPath, StartedAt: run.StartedAt,
	}
	if err := s.Registry.Register(info, handle); err != nil {
		_ = handle.Kill()
		return run.ID, err
	}

	s.Router.Route(run.ID, handle)
	return run.ID, nil
}

// ExecuteAgent launches a run from a stored Agent template (spec §6).
func (s *Surface) ExecuteAgent(agentID, projectPath, task, modelOverride string) (string, error) {
	agent, err := s.Catalog.GetAgent(agentID)
	if err != nil {
		return "", err
	}
	model := agent.Model
	if modelOverride != "" {
		model = modelOverride
	}
	if task == "" {
		task = agent.DefaultTask
	}
	return s.spawn(spawnParams{
		AgentID: agent.ID, DisplayName: agent.Name, Icon: agent.Icon,
		ProjectPath: projectPath, Task: task, SystemPrompt: agent.SystemPrompt, Model: model,
		Perms: types.Permissions{
			SandboxEnabled: agent.SandboxEnabled, FileRead: agent.FileRead,
			FileWrite: agent.FileWrite, Network: agent.Network,
		},
	})
}

// ExecuteSession launches a direct, agent-less run, optionally resuming
// a prior external session by its correlation token (spec §6).
func (s *Surface) ExecuteSession(projectPath, prompt, model, resumeToken string) (string, error) {
	return s.spawn(spawnParams{
		DisplayName: "session", ProjectPath: projectPath, Task: prompt, Model: model,
		Perms: directSessionPermissions, ResumeToken: resumeToken,
	})
}

// ContinueSession launches a direct run that continues the most recent
// conversation in projectPath, per the external tool's own continuation
// semantics (spec §6).
func (s *Surface) ContinueSession(projectPath, prompt, model string) (string, error) {
	return s.spawn(spawnParams{
		DisplayName: "session", ProjectPath: projectPath, Task: prompt, Model: model,
		Perms: directSessionPermissions, Continue: true,
	})
}

// ListRunningRuns returns every run the Live Registry currently tracks.
func (s *Surface) ListRunningRuns() []types.ProcessInfo {
	return s.Registry.List()
}

// GetLiveOutput returns a snapshot of run_id's ring-buffered tail.
func (s *Surface) GetLiveOutput(runID string) (string, error) {
	return s.Registry.ReadOutput(runID)
}

// KillRun sends the terminate signal to a running run. Returns as soon
// as the signal is issued; it does not wait for exit (spec §5).
func (s *Surface) KillRun(runID string) bool {
	return s.Registry.Kill(runID)
}

// CleanupFinishedRuns is a no-op observation point: the Output Router's
// waiter already unregisters finished runs from the Live Registry the
// moment they complete, so there is nothing left to sweep. Exposed
// anyway because the GUI's RPC surface names it (spec §6).
func (s *Surface) CleanupFinishedRuns() error {
	return nil
}
