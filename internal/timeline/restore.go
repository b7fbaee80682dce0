package timeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harborctl/sentinel/internal/filetracker"
	"github.com/harborctl/sentinel/internal/types"
)

// Restore loads checkpointID, reconciles the project directory to match
// it (deleting extras, writing back tracked content, restoring
// permissions where supported), replaces the in-memory message stream,
// advances the current pointer, and rebuilds File Tracker state so every
// restored path reads as present with modified=false (spec §4.8).
func (m *Manager) Restore(checkpointID string) (*types.RestoreReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restoreLocked(checkpointID)
}

func (m *Manager) restoreLocked(checkpointID string) (*types.RestoreReport, error) {
	loaded, err := m.store.Load(m.ProjectID, m.SessionID, checkpointID)
	if err != nil {
		return nil, err
	}

	report := &types.RestoreReport{CheckpointID: checkpointID}

	present := make(map[string]bool)
	for _, s := range loaded.Snapshots {
		if !s.IsDeleted {
			present[s.Path] = true
		}
	}

	if err := m.tracker.Discover(); err != nil {
		return nil, fmt.Errorf("timeline: discover before restore: %w", err)
	}
	for _, f := range m.tracker.All() {
		if !present[f.Path] {
			full := filepath.Join(m.ProjectPath, f.Path)
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				report.Warnings = append(report.Warnings, fmt.Sprintf("remove %s: %v", f.Path, err))
				continue
			}
			report.FilesDeleted++
		}
	}

	for _, s := range loaded.Snapshots {
		full := filepath.Join(m.ProjectPath, s.Path)
		if s.IsDeleted {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				report.Warnings = append(report.Warnings, fmt.Sprintf("delete %s: %v", s.Path, err))
			} else {
				report.FilesDeleted++
			}
			continue
		}
		raw, ok := loaded.Contents[s.Path]
		if !ok {
			report.Warnings = append(report.Warnings, fmt.Sprintf("missing content for %s", s.Path))
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("mkdir for %s: %v", s.Path, err))
			continue
		}
		mode := os.FileMode(0o644)
		if s.Mode != 0 {
			mode = os.FileMode(s.Mode)
		}
		if err := os.WriteFile(full, raw, mode); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("write %s: %v", s.Path, err))
			continue
		}
		report.FilesWritten++
	}

	m.messages = loaded.Messages
	m.timeline.CurrentID = checkpointID

	m.tracker = filetracker.New(m.ProjectPath, m.store.StateDir)
	if err := m.tracker.Discover(); err != nil {
		return nil, fmt.Errorf("timeline: rebuild tracker after restore: %w", err)
	}
	m.tracker.ResetModified()

	return report, nil
}

// Fork restores checkpointID, then immediately creates a new checkpoint
// whose parent is explicitly checkpointID, producing a visible branch
// rather than a linear continuation (spec §4.8).
func (m *Manager) Fork(checkpointID string) (*types.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.restoreLocked(checkpointID); err != nil {
		return nil, err
	}
	m.timeline.CurrentID = checkpointID
	return m.createCheckpointLocked("fork of " + checkpointID)
}
