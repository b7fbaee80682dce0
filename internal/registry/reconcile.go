package registry

import (
	"log"
	"time"

	"github.com/harborctl/sentinel/internal/types"
)

// ReconcileInterval is how often the reconciliation task re-checks the
// catalog's running rows against this registry (spec §4.4).
const ReconcileInterval = 30 * time.Second

// CatalogStore is the subset of internal/catalog that reconciliation
// needs, kept minimal so this package doesn't import the database driver.
type CatalogStore interface {
	RunningRuns() ([]*types.Run, error)
	UpdateRunStatus(id string, status types.RunStatus, pid int, errMsg string) error
	SetAppSetting(key, value string) error
}

// Reconciler runs the startup-and-every-30s sweep: any catalog row still
// marked running that isn't in the Live Registry, or whose pid is dead,
// is transitioned to cancelled. This recovers from a supervisor crash
// that orphaned its own bookkeeping.
type Reconciler struct {
	registry *Registry
	catalog  CatalogStore
	stopCh   chan struct{}
}

// NewReconciler builds a Reconciler bound to the given registry/catalog.
func NewReconciler(reg *Registry, cat CatalogStore) *Reconciler {
	return &Reconciler{registry: reg, catalog: cat, stopCh: make(chan struct{})}
}

// Start runs an immediate sweep, then repeats every ReconcileInterval
// until Stop is called. Intended to be launched with `go r.Start()`.
func (r *Reconciler) Start() {
	r.sweep()

	ticker := time.NewTicker(ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// Stop terminates the reconciliation loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) sweep() {
	runs, err := r.catalog.RunningRuns()
	if err != nil {
		log.Printf("[RECONCILE] ERROR: list running runs: %v", err)
		return
	}

	for _, run := range runs {
		alive := r.registry.IsAlive(run.ID)
		if alive {
			continue
		}
		log.Printf("[RECONCILE] run %s not alive (pid=%d), marking cancelled", run.ID, run.PID)
		if err := r.catalog.UpdateRunStatus(run.ID, types.RunCancelled, 0, "reconciled: supervisor restart or crash"); err != nil {
			log.Printf("[RECONCILE] ERROR: update run %s status: %v", run.ID, err)
		}
		r.registry.Unregister(run.ID)
	}

	if err := r.catalog.SetAppSetting("last_reconciled_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		log.Printf("[RECONCILE] ERROR: record last_reconciled_at: %v", err)
	}
}
