package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GC enumerates the content pool for a session and deletes any entry
// whose hash is not in liveHashes (spec §4.6 gc).
func (s *Store) GC(projectID, sessionID string, liveHashes map[string]struct{}) (int, error) {
	layout := NewLayout(s.StateDir, projectID, sessionID)
	poolDir := filepath.Join(layout.Root, "files", "content_pool")

	entries, err := os.ReadDir(poolDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("snapshot: list content pool: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if _, live := liveHashes[entry.Name()]; live {
			continue
		}
		if err := os.Remove(filepath.Join(poolDir, entry.Name())); err != nil {
			return deleted, fmt.Errorf("snapshot: remove unreferenced blob %s: %w", entry.Name(), err)
		}
		deleted++
	}
	return deleted, nil
}

// CleanupOld keeps only the keepN most recently created checkpoints
// (by timeline.json's node order) for a session, removing their
// checkpoint directories, then runs GC over the remaining live hashes.
// The current checkpoint and the root are never removed, regardless of
// age (spec §4.6). Returns the number of checkpoint directories removed.
func (s *Store) CleanupOld(projectID, sessionID string, keepOrder []string, keepN int, protected map[string]struct{}) (int, error) {
	layout := NewLayout(s.StateDir, projectID, sessionID)

	if keepN < 0 || keepN >= len(keepOrder) {
		return 0, nil
	}
	candidates := keepOrder[:len(keepOrder)-keepN]
	var toRemove []string
	var kept []string
	for _, id := range candidates {
		if _, skip := protected[id]; skip {
			kept = append(kept, id)
			continue
		}
		toRemove = append(toRemove, id)
	}
	survivors := append(append([]string{}, kept...), keepOrder[len(keepOrder)-keepN:]...)

	removed := 0
	for _, id := range toRemove {
		dir := layout.CheckpointDir(id)
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("snapshot: remove checkpoint dir %s: %w", id, err)
		}
		refsDir := filepath.Join(layout.Root, "files", "refs", id)
		if err := os.RemoveAll(refsDir); err != nil {
			return removed, fmt.Errorf("snapshot: remove refs dir %s: %w", id, err)
		}
		removed++
	}

	live, err := s.liveHashes(projectID, sessionID, survivors)
	if err != nil {
		return removed, err
	}
	if _, err := s.GC(projectID, sessionID, live); err != nil {
		return removed, err
	}
	return removed, nil
}

func (s *Store) liveHashes(projectID, sessionID string, keep []string) (map[string]struct{}, error) {
	layout := NewLayout(s.StateDir, projectID, sessionID)
	live := make(map[string]struct{})
	for _, id := range keep {
		refsDir := filepath.Join(layout.Root, "files", "refs", id)
		entries, err := os.ReadDir(refsDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("snapshot: list refs for %s: %w", id, err)
		}
		for _, entry := range entries {
			data, err := os.ReadFile(filepath.Join(refsDir, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("snapshot: read ref %s: %w", entry.Name(), err)
			}
			var ref fileRef
			if err := json.Unmarshal(data, &ref); err != nil {
				return nil, fmt.Errorf("snapshot: unmarshal ref %s: %w", entry.Name(), err)
			}
			if ref.Hash != "" {
				live[ref.Hash] = struct{}{}
			}
		}
	}
	return live, nil
}
