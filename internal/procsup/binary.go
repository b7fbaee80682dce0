package procsup

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// BinaryName is the external AI tool executable sentineld spawns.
const BinaryName = "claude"

// CommonInstallLocations lists the fallback directories probed between a
// configured path and a PATH lookup, grounded on the layered
// configured-path→fallback probing the teacher's spawner used for
// locating its own tooling.
func CommonInstallLocations() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		return []string{
			filepath.Join(home, "AppData", "Local", "Programs", "claude", BinaryName+".exe"),
			filepath.Join(home, ".local", "bin", BinaryName+".exe"),
		}
	default:
		return []string{
			filepath.Join(home, ".local", "bin", BinaryName),
			"/usr/local/bin/" + BinaryName,
			"/opt/homebrew/bin/" + BinaryName,
		}
	}
}

// ResolveBinary implements spec §4.3's resolution order: configured path,
// then common install locations, then a which-style PATH lookup.
func ResolveBinary(configuredPath string) (string, error) {
	if configuredPath != "" {
		if info, err := os.Stat(configuredPath); err == nil && !info.IsDir() {
			return configuredPath, nil
		}
		return "", spawnError(ReasonBinaryNotFound, "configured binary path does not exist: "+configuredPath, nil)
	}

	for _, candidate := range CommonInstallLocations() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	if found, err := exec.LookPath(BinaryName); err == nil {
		return found, nil
	}

	return "", spawnError(ReasonBinaryNotFound, "no "+BinaryName+" binary found on configured path, common install locations, or PATH", nil)
}
