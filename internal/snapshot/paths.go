// Package snapshot implements the content-addressed, compressed,
// deduplicating checkpoint store of spec §4.6.
package snapshot

import (
	"encoding/base64"
	"net/url"
	"path/filepath"
)

// Layout resolves the on-disk paths under
// <state_dir>/projects/<project_id>/timelines/<session_id>/ (spec §4.6).
type Layout struct {
	Root string // <state_dir>/projects/<project_id>/timelines/<session_id>
}

func NewLayout(stateDir, projectID, sessionID string) Layout {
	return Layout{Root: filepath.Join(stateDir, "projects", projectID, "timelines", sessionID)}
}

func (l Layout) TimelineFile() string { return filepath.Join(l.Root, "timeline.json") }

func (l Layout) CheckpointDir(checkpointID string) string {
	return filepath.Join(l.Root, "checkpoints", checkpointID)
}

func (l Layout) MetadataFile(checkpointID string) string {
	return filepath.Join(l.CheckpointDir(checkpointID), "metadata.json")
}

func (l Layout) MessagesFile(checkpointID string) string {
	return filepath.Join(l.CheckpointDir(checkpointID), "messages.jsonl.zst")
}

func (l Layout) ContentPoolFile(hexHash string) string {
	return filepath.Join(l.Root, "files", "content_pool", hexHash)
}

func (l Layout) RefFile(checkpointID, path string) string {
	return filepath.Join(l.Root, "files", "refs", checkpointID, escapePath(path)+".json")
}

// escapePath makes an arbitrary project-relative path safe as a single
// path segment on disk.
func escapePath(path string) string {
	return url.PathEscape(path)
}

// ProjectID derives the stable, reversible project id used under
// <state_dir>/projects/<project_id>/ from an absolute project path (spec
// §6). Base64url keeps it filesystem-safe while remaining decodable,
// rather than a one-way hash, so a stored project directory can be
// traced back to its path without a side index.
func ProjectID(absProjectPath string) string {
	clean := filepath.Clean(absProjectPath)
	return base64.RawURLEncoding.EncodeToString([]byte(clean))
}

// DecodeProjectID reverses ProjectID, used by tooling that needs to
// recover a project's path from its id alone.
func DecodeProjectID(projectID string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(projectID)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
