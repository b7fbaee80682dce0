// Package filetracker maintains a project's relative-path → FileState
// map, detecting changes by re-hashing with the same algorithm the
// Snapshot Store uses for content addressing (spec §4.7).
package filetracker

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/harborctl/sentinel/internal/snapshot"
)

// BinaryThresholdBytes is the size past which a file is tracked by
// metadata only rather than content-hashed (spec §4.7 "large binary
// thresholds").
const BinaryThresholdBytes = 1 << 20 // 1 MiB

// IgnoreDirs lists directory names never walked into (spec §4.7's "VCS
// metadata directories... node_modules-class vendor dirs").
var IgnoreDirs = map[string]struct{}{
	".git": {}, ".hg": {}, ".svn": {},
	"node_modules": {}, "vendor": {}, "target": {}, "dist": {}, "build": {},
}

// FileState is one tracked path's current knowledge.
type FileState struct {
	Path     string
	Exists   bool
	Hash     string // empty if over BinaryThresholdBytes or the file doesn't exist
	Size     int64
	Mode     uint32
	Modified bool
}

// Tracker holds the per-project file map. A project's state directory
// (if it lives inside ProjectPath) is excluded from discovery.
type Tracker struct {
	ProjectPath string
	StateDir    string // absolute; ignored during walks if under ProjectPath

	mu    sync.Mutex
	files map[string]*FileState
}

// New returns a Tracker with an empty map.
func New(projectPath, stateDir string) *Tracker {
	return &Tracker{ProjectPath: projectPath, StateDir: stateDir, files: make(map[string]*FileState)}
}

// Discover walks the project tree, ensuring every non-ignored file has an
// entry (newly discovered files start with modified=true).
func (t *Tracker) Discover() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return filepath.WalkDir(t.ProjectPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == t.ProjectPath {
			return nil
		}
		rel, relErr := filepath.Rel(t.ProjectPath, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if t.shouldIgnoreDir(path, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := t.files[rel]; !ok {
			state, statErr := t.statAndHash(rel)
			if statErr != nil {
				return statErr
			}
			state.Modified = true
			t.files[rel] = state
		}
		return nil
	})
}

func (t *Tracker) shouldIgnoreDir(path, name string) bool {
	if _, ignored := IgnoreDirs[name]; ignored {
		return true
	}
	if t.StateDir != "" {
		abs, err := filepath.Abs(path)
		if err == nil && abs == t.StateDir {
			return true
		}
	}
	return false
}

// Touch re-stats and re-hashes relpath, setting Modified when the hash
// (or existence) changed since the last touch/discover. A Modified flag
// that is already set stays set until ResetModified.
func (t *Tracker) Touch(relpath string) (*FileState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, hadPrev := t.files[relpath]
	next, err := t.statAndHash(relpath)
	if err != nil {
		return nil, err
	}

	if !hadPrev {
		next.Modified = true
	} else {
		next.Modified = prev.Modified || next.Hash != prev.Hash || next.Exists != prev.Exists
	}
	t.files[relpath] = next
	return next, nil
}

func (t *Tracker) statAndHash(relpath string) (*FileState, error) {
	full := filepath.Join(t.ProjectPath, relpath)
	info, err := os.Lstat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileState{Path: relpath, Exists: false}, nil
		}
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 || info.IsDir() {
		return &FileState{Path: relpath, Exists: true, Size: info.Size(), Mode: uint32(info.Mode().Perm())}, nil
	}

	state := &FileState{Path: relpath, Exists: true, Size: info.Size(), Mode: uint32(info.Mode().Perm())}
	if info.Size() > BinaryThresholdBytes {
		return state, nil // tracked by metadata only, per spec §4.7
	}

	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	state.Hash = snapshot.HashContent(raw)
	return state, nil
}

// ResetModified clears every tracked file's Modified flag, called after
// a successful checkpoint.
func (t *Tracker) ResetModified() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.files {
		f.Modified = false
	}
}

// Modified returns every currently-modified-or-deleted tracked path.
func (t *Tracker) Modified() []FileState {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []FileState
	for _, f := range t.files {
		if f.Modified || !f.Exists {
			out = append(out, *f)
		}
	}
	return out
}

// All returns a snapshot of every tracked file's current state.
func (t *Tracker) All() []FileState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FileState, 0, len(t.files))
	for _, f := range t.files {
		out = append(out, *f)
	}
	return out
}
