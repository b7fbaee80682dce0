//go:build windows

package procsup

import "os"

// Windows has no SIGTERM equivalent reachable through os.Process.Signal;
// Kill is the closest available terminate primitive.
func killProcess(proc *os.Process) error {
	return proc.Kill()
}

// FindProcess on Windows opens a handle via OpenProcess and fails if the
// pid doesn't exist, unlike Unix where FindProcess always succeeds.
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
