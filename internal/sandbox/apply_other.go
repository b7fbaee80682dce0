//go:build !linux && !darwin

package sandbox

import (
	"fmt"
	"os/exec"
)

// Apply is a no-op on platforms with no supported sandbox primitive
// (spec §4.2's Windows behavior, per Capabilities reporting zero
// per-operation support there). The caller still gets the serialized
// profile for logging/auditing.
func Apply(profile *Profile, cmd *exec.Cmd) error {
	return nil
}

// RunSelfExecHelper is never dispatched into on this platform: Apply
// never rewrites cmd to re-exec through SandboxExecArg here.
func RunSelfExecHelper(args []string) error {
	return fmt.Errorf("sandbox: self-exec helper not supported on this platform")
}
