//go:build darwin

package sandbox

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/harborctl/sentinel/internal/types"
)

// Apply generates a sandbox-exec (Seatbelt) profile string restricting
// file reads to the allow-listed subtrees and installs it via the
// deprecated-but-still-functional -p flag, the same approach used by
// Seatbelt-based sandbox examples in the corpus. Seatbelt has no
// equivalent to Landlock's positive read allow-list semantics for
// metadata-only reads, so file_read_metadata collapses into the same
// file-read-data allow rule as file_read_all on this platform.
func Apply(profile *Profile, cmd *exec.Cmd) error {
	if !profile.Enabled {
		return nil
	}

	var allow []string
	for _, op := range profile.Operations {
		switch op.Kind {
		case types.OpFileReadAll, types.OpFileReadMetadata:
			allow = append(allow, fmt.Sprintf(`(allow file-read* (subpath %q))`, op.Value))
		case types.OpNetworkOutbound:
			allow = append(allow, `(allow network-outbound)`)
		case types.OpSystemInfoRead:
			allow = append(allow, `(allow system-info)`)
		}
	}

	sb := "(version 1)\n(deny default)\n" + strings.Join(allow, "\n") + "\n"

	wrapped := append([]string{"-p", sb, cmd.Path}, cmd.Args[1:]...)
	cmd.Path = "/usr/bin/sandbox-exec"
	cmd.Args = append([]string{"sandbox-exec"}, wrapped...)
	return nil
}

// RunSelfExecHelper is never dispatched into on Darwin: Apply wraps the
// child directly through /usr/bin/sandbox-exec rather than re-exec'ing
// this binary, since Seatbelt's enforcement attaches at the wrapper's own
// exec with no separate restrict-self step required.
func RunSelfExecHelper(args []string) error {
	return fmt.Errorf("sandbox: self-exec helper not used on darwin")
}
