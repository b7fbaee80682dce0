// Package procsup resolves the external AI tool binary, builds its argv
// and environment, applies a sandbox profile, and spawns/waits/kills the
// child process (spec §4.3).
package procsup

import "github.com/harborctl/sentinel/internal/apperr"

// SpawnReason distinguishes the three ways a spawn can fail (spec §4.3).
type SpawnReason string

const (
	ReasonBinaryNotFound    SpawnReason = "binary_not_found"
	ReasonSandboxInitFailed SpawnReason = "sandbox_init_failed"
	ReasonExecFailed        SpawnReason = "exec_failed"
)

// spawnError wraps a SpawnReason with its apperr.Kind so callers can match
// on either the typed reason or the generic error taxonomy.
func spawnError(reason SpawnReason, message string, cause error) error {
	kind := apperr.KindInternal
	if reason == ReasonBinaryNotFound || reason == ReasonSandboxInitFailed {
		kind = apperr.KindUnavailable
	}
	return apperr.Wrap(kind, string(reason)+": "+message, cause)
}
