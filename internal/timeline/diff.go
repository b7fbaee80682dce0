package timeline

import (
	"fmt"

	"github.com/harborctl/sentinel/internal/types"
)

// Diff loads checkpoints a and b and compares their file snapshot sets
// and metadata (spec §4.8). Diff is a reader operation and may run
// concurrently with other readers.
func (m *Manager) Diff(a, b string) (*types.CheckpointDiff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loadedA, err := m.store.Load(m.ProjectID, m.SessionID, a)
	if err != nil {
		return nil, fmt.Errorf("timeline: load %s for diff: %w", a, err)
	}
	loadedB, err := m.store.Load(m.ProjectID, m.SessionID, b)
	if err != nil {
		return nil, fmt.Errorf("timeline: load %s for diff: %w", b, err)
	}

	filesA := make(map[string]types.FileSnapshot, len(loadedA.Snapshots))
	for _, s := range loadedA.Snapshots {
		if !s.IsDeleted {
			filesA[s.Path] = s
		}
	}
	filesB := make(map[string]types.FileSnapshot, len(loadedB.Snapshots))
	for _, s := range loadedB.Snapshots {
		if !s.IsDeleted {
			filesB[s.Path] = s
		}
	}

	diff := &types.CheckpointDiff{}
	for path, sb := range filesB {
		sa, existed := filesA[path]
		switch {
		case !existed:
			diff.Added = append(diff.Added, types.FileDiffEntry{Path: path, NewSize: sb.Size})
		case sa.Hash != sb.Hash:
			diff.Modified = append(diff.Modified, types.FileDiffEntry{Path: path, OldSize: sa.Size, NewSize: sb.Size})
		}
	}
	for path, sa := range filesA {
		if _, ok := filesB[path]; !ok {
			diff.Removed = append(diff.Removed, types.FileDiffEntry{Path: path, OldSize: sa.Size})
		}
	}

	diff.TokenDelta = loadedB.Checkpoint.Metadata.TotalTokens - loadedA.Checkpoint.Metadata.TotalTokens
	return diff, nil
}

// CleanupOld deletes all checkpoints older than the newest keepN (never
// the current checkpoint or the root), then garbage-collects any content
// pool blob left unreferenced (spec §4.6's cleanup_old + gc).
func (m *Manager) CleanupOld(keepN int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.checkpointOrderLocked()
	protected := map[string]struct{}{
		m.timeline.RootID:    {},
		m.timeline.CurrentID: {},
	}
	removed, err := m.store.CleanupOld(m.ProjectID, m.SessionID, order, keepN, protected)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// checkpointOrderLocked returns checkpoint ids ordered oldest-first by
// walking the tree from root, matching the order the store's
// keep-newest-N policy expects.
func (m *Manager) checkpointOrderLocked() []string {
	var order []string
	var walk func(id string)
	seen := make(map[string]struct{})
	walk = func(id string) {
		if _, dup := seen[id]; dup || id == "" {
			return
		}
		seen[id] = struct{}{}
		order = append(order, id)
		node, ok := m.timeline.Nodes[id]
		if !ok {
			return
		}
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(m.timeline.RootID)
	return order
}
