// Package registry holds the Live Registry (spec §4.4): the in-memory
// map from run id to process state that the Command Surface, Output
// Router, and reconciliation task all share.
package registry

import (
	"sync"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/procsup"
	"github.com/harborctl/sentinel/internal/types"
)

// DefaultRingBufferBytes is the default bound on a run's live-output tail.
const DefaultRingBufferBytes = 1 << 20 // 1 MiB

type entry struct {
	info   types.ProcessInfo
	handle *procsup.Handle // nil once kill() has taken it, or after unregister
	output *ringBuffer
}

// Registry is the reader-preferring, O(1)-critical-section map described
// by spec §4.4. Every method except list/read_output/is_alive mutates the
// map directly under a single RWMutex; no I/O ever happens while the lock
// is held.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register inserts a new run. Duplicate run ids fail with KindConflict.
func (r *Registry) Register(info types.ProcessInfo, handle *procsup.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[info.RunID]; exists {
		return apperr.New(apperr.KindConflict, "run already registered: "+info.RunID)
	}
	r.entries[info.RunID] = &entry{
		info:   info,
		handle: handle,
		output: newRingBuffer(DefaultRingBufferBytes),
	}
	return nil
}

// Unregister removes a run. Idempotent: removing an absent run is not an
// error.
func (r *Registry) Unregister(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, runID)
}

// List returns a snapshot of every currently registered run.
func (r *Registry) List() []types.ProcessInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ProcessInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	return out
}

// AppendOutput pushes a line into run_id's ring buffer. Never blocks;
// absent runs are silently ignored (the pump may outlive a race with
// Unregister).
func (r *Registry) AppendOutput(runID string, line []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[runID]; ok {
		e.output.append(line)
	}
}

// ReadOutput returns a snapshot copy of run_id's current buffer.
func (r *Registry) ReadOutput(runID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[runID]
	if !ok {
		return "", apperr.New(apperr.KindNotFound, "run not registered: "+runID)
	}
	return string(e.output.snapshot()), nil
}

// Kill takes the child handle out of the map (releasing the lock before
// calling the Supervisor), sends the terminate signal, then clears the
// slot's handle. The entry itself remains until Unregister. Returns false
// if the run was absent or had no live handle.
func (r *Registry) Kill(runID string) bool {
	r.mu.Lock()
	e, ok := r.entries[runID]
	if !ok || e.handle == nil {
		r.mu.Unlock()
		return false
	}
	handle := e.handle
	r.mu.Unlock()

	delivered := handle.Kill() == nil

	r.mu.Lock()
	if e, ok := r.entries[runID]; ok {
		e.handle = nil
	}
	r.mu.Unlock()

	return delivered
}

// IsAlive reports whether run_id's process is still alive at the OS
// level, used by the reconciliation task.
func (r *Registry) IsAlive(runID string) bool {
	r.mu.RLock()
	e, ok := r.entries[runID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return procsup.IsAlive(e.info.PID)
}
