package commandsurface

import (
	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/snapshot"
	"github.com/harborctl/sentinel/internal/timeline"
	"github.com/harborctl/sentinel/internal/types"
)

// resolveProjectID derives a project id from projectPath when the caller
// hasn't supplied one, since spec §6 treats project_id as a stable,
// reversible derivation of the absolute project path rather than a
// caller-minted identifier.
func resolveProjectID(projectID, projectPath string) string {
	if projectID != "" {
		return projectID
	}
	return snapshot.ProjectID(projectPath)
}

func (s *Surface) manager(sessionID, projectID, projectPath string) (*timeline.Manager, error) {
	projectID = resolveProjectID(projectID, projectPath)
	return s.Managers.GetOrCreate(sessionID, projectID, projectPath, DefaultAutoCheckpointStrategy)
}

// GetSessionTimeline returns the current timeline tree/summary for a
// session, lazily constructing its Manager if this is the first access
// (spec §4.9, §6).
func (s *Surface) GetSessionTimeline(sessionID, projectID, projectPath string) (types.SessionTimeline, error) {
	m, err := s.manager(sessionID, projectID, projectPath)
	if err != nil {
		return types.SessionTimeline{}, err
	}
	return m.GetTimeline(), nil
}

// CreateCheckpoint creates a checkpoint at the session's current point
// (spec §6). messageIndex is accepted for RPC-surface compatibility but
// the Manager always checkpoints at its own current message count,
// since that is the only index consistent with the in-memory stream it
// is serializing.
func (s *Surface) CreateCheckpoint(sessionID, projectID, projectPath string, messageIndex int, description string) (*types.Checkpoint, error) {
	m, err := s.manager(sessionID, projectID, projectPath)
	if err != nil {
		return nil, err
	}
	return m.CreateCheckpoint(description)
}

// RestoreCheckpoint resets session/project state to checkpointID.
func (s *Surface) RestoreCheckpoint(checkpointID, sessionID, projectID, projectPath string) (*types.RestoreReport, error) {
	m, err := s.manager(sessionID, projectID, projectPath)
	if err != nil {
		return nil, err
	}
	return m.Restore(checkpointID)
}

// ForkCheckpoint restores checkpointID then immediately checkpoints
// again with it as the explicit parent, producing a visible branch.
func (s *Surface) ForkCheckpoint(checkpointID, sessionID, projectID, projectPath string) (*types.Checkpoint, error) {
	m, err := s.manager(sessionID, projectID, projectPath)
	if err != nil {
		return nil, err
	}
	return m.Fork(checkpointID)
}

// GetCheckpointDiff compares two checkpoints within the same session.
// Unlike the other timeline operations, spec §6 gives this one no
// project_path, so it can only operate on a session whose Manager is
// already live in the directory.
func (s *Surface) GetCheckpointDiff(a, b, sessionID, projectID string) (*types.CheckpointDiff, error) {
	m, ok := s.Managers.Get(sessionID)
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "no live timeline manager for session "+sessionID+"; call get_session_timeline first")
	}
	return m.Diff(a, b)
}

// GetCheckpointSettings reports the session's auto-checkpoint
// configuration.
func (s *Surface) GetCheckpointSettings(sessionID, projectID, projectPath string) (bool, types.AutoCheckpointStrategy, error) {
	m, err := s.manager(sessionID, projectID, projectPath)
	if err != nil {
		return false, "", err
	}
	tl := m.GetTimeline()
	return tl.AutoEnabled, tl.Strategy, nil
}

// UpdateCheckpointSettings changes a session's auto-checkpoint policy.
func (s *Surface) UpdateCheckpointSettings(sessionID, projectID, projectPath string, auto bool, strategy types.AutoCheckpointStrategy) error {
	m, err := s.manager(sessionID, projectID, projectPath)
	if err != nil {
		return err
	}
	return m.UpdateSettings(auto, strategy)
}

// CleanupOldCheckpoints deletes all but the newest keep checkpoints for
// a session and garbage-collects unreferenced content pool blobs,
// returning the number of checkpoints removed.
func (s *Surface) CleanupOldCheckpoints(sessionID, projectID, projectPath string, keep int) (int, error) {
	m, err := s.manager(sessionID, projectID, projectPath)
	if err != nil {
		return 0, err
	}
	return m.CleanupOld(keep)
}
