// Package managerdir implements the Manager Directory (spec §4.9): the
// process-wide map from session id to a live Timeline Manager instance,
// so the expensive per-session startup (walking the project, loading the
// timeline tree) happens once and every command handler shares it.
package managerdir

import (
	"fmt"
	"sync"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/snapshot"
	"github.com/harborctl/sentinel/internal/timeline"
	"github.com/harborctl/sentinel/internal/types"
)

// Directory is the sole mint point for timeline.Manager instances.
type Directory struct {
	store *snapshot.Store

	mu       sync.Mutex
	managers map[string]*timeline.Manager
}

// New returns an empty Directory bound to store.
func New(store *snapshot.Store) *Directory {
	return &Directory{store: store, managers: make(map[string]*timeline.Manager)}
}

// GetOrCreate returns the cached Manager for sessionID, or lazily
// constructs one: loading timeline.json if a prior session left one on
// disk, else creating a fresh root checkpoint (spec §4.9).
func (d *Directory) GetOrCreate(sessionID, projectID, projectPath string, defaultStrategy types.AutoCheckpointStrategy) (*timeline.Manager, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m, ok := d.managers[sessionID]; ok {
		return m, nil
	}

	m, err := timeline.Load(d.store, sessionID, projectID, projectPath)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			m, err = timeline.New(d.store, sessionID, projectID, projectPath, defaultStrategy)
			if err != nil {
				return nil, fmt.Errorf("managerdir: create manager for session %s: %w", sessionID, err)
			}
		} else {
			return nil, fmt.Errorf("managerdir: load manager for session %s: %w", sessionID, err)
		}
	}

	d.managers[sessionID] = m
	return m, nil
}

// Get returns the cached Manager for sessionID without constructing one,
// used by operations whose RPC signature carries no project_path (spec
// §6's get_checkpoint_diff) and therefore cannot mint a fresh Manager.
func (d *Directory) Get(sessionID string) (*timeline.Manager, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.managers[sessionID]
	return m, ok
}

// Remove drops sessionID's cached Manager, if any.
func (d *Directory) Remove(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.managers, sessionID)
}

// Clear drops every cached Manager, used on shutdown.
func (d *Directory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.managers = make(map[string]*timeline.Manager)
}

// Count reports how many sessions currently have a live Manager, used by
// diagnostics.
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.managers)
}
