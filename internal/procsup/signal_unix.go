//go:build !windows

package procsup

import (
	"os"
	"syscall"
)

func killProcess(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
