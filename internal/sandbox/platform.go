package sandbox

import (
	"runtime"

	"github.com/harborctl/sentinel/internal/types"
)

// SandboxExecArg is the hidden re-exec subcommand name cmd/sentineld
// recognizes in os.Args[1] and dispatches to RunSelfExecHelper before any
// other startup work. os/exec has no pre-exec hook, so the only way to
// run code after fork but before the sandboxed binary's exec is to
// re-exec this same binary and have it restrict itself before exec'ing
// into the real target — see internal/sandbox's per-platform Apply for
// which platforms actually use this path (currently Linux only; Darwin's
// sandbox-exec wrapping needs no pre-exec step of its own).
const SandboxExecArg = "__sandbox_exec__"

// Capabilities reports which operation kinds this OS can actually
// enforce, exposed at the Command Surface as get_platform_capabilities
// (spec §6). File write is never enforceable (spec §4.2's "advisory"
// clause) and is therefore never listed as supported, on any platform.
func Capabilities() types.PlatformCapabilities {
	goos := runtime.GOOS
	support := map[string]bool{
		string(types.OpFileReadAll):      false,
		string(types.OpFileReadMetadata): false,
		string(types.OpNetworkOutbound):  false,
		string(types.OpSystemInfoRead):   false,
	}

	switch goos {
	case "linux":
		// Landlock's handled-access set here covers filesystem reads only;
		// its network rule types need a newer ABI version than this
		// profile targets, so outbound network is reported unsupported
		// rather than claiming enforcement Apply doesn't actually provide.
		support[string(types.OpFileReadAll)] = true
		support[string(types.OpFileReadMetadata)] = true
		support[string(types.OpSystemInfoRead)] = true
	case "darwin":
		support[string(types.OpFileReadAll)] = true
		support[string(types.OpFileReadMetadata)] = true
		support[string(types.OpNetworkOutbound)] = true
		support[string(types.OpSystemInfoRead)] = true
	default:
		// windows and anything else: no supported operation kinds.
		// Sandboxing itself is advisory there (SPEC_FULL §Sandbox Profile
		// Builder expansion).
	}

	anySupported := false
	for _, v := range support {
		if v {
			anySupported = true
			break
		}
	}

	return types.PlatformCapabilities{
		OS:                  goos,
		SandboxingSupported: anySupported,
		PerOperationSupport: support,
	}
}
