package procsup

import (
	"io"
	"log"
	"os/exec"
	"sync"
	"time"

	"github.com/harborctl/sentinel/internal/sandbox"
)

// SpawnInitTimeout is the bound on a spawn's initialization window (spec
// §5's "only spawn has a bounded initialization timeout"; the AI tool run
// itself is never bounded). A var rather than a const so tests can shrink
// it to exercise the timeout path deterministically.
var SpawnInitTimeout = 5 * time.Second

// Handle is the exclusive owner of a spawned child's OS resources between
// spawn and the eventual wait that reaps it (spec §4.3 invariant: exactly
// one owner of the child handle at any time).
type Handle struct {
	RunID  string
	PID    int
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	mu       sync.Mutex
	cmd      *exec.Cmd
	waitOnce sync.Once
	waitErr  error
	killed   bool
}

// Supervisor spawns, waits on, and kills child processes under a computed
// sandbox profile.
type Supervisor struct {
	BinaryPath string
}

// NewSupervisor resolves the binary once at construction; a missing
// binary is reported immediately rather than deferred to the first spawn.
func NewSupervisor(configuredPath string) (*Supervisor, error) {
	path, err := ResolveBinary(configuredPath)
	if err != nil {
		return nil, err
	}
	return &Supervisor{BinaryPath: path}, nil
}

// Spawn resolves argv/env, applies the sandbox profile, starts the child
// with stdin=null and stdout/stderr as pipes, and returns a Handle owning
// the child until Wait consumes it. Matches spec §4.3's spawn contract.
// The whole operation is bound by SpawnInitTimeout (spec §5): if argv/env
// construction, sandbox application, and the fork/exec itself haven't
// finished within that window, spawn is deemed failed and any child that
// does eventually start is killed and reaped rather than leaked. This
// bounds spawn's own initialization work, not how long the spawned AI
// tool subsequently runs.
func (s *Supervisor) Spawn(runID string, spec Spec, profile *sandbox.Profile) (*Handle, error) {
	type spawnResult struct {
		h   *Handle
		err error
	}
	resultCh := make(chan spawnResult, 1)

	go func() {
		h, err := s.spawnSync(runID, spec, profile)
		resultCh <- spawnResult{h, err}
	}()

	select {
	case r := <-resultCh:
		return r.h, r.err
	case <-time.After(SpawnInitTimeout):
		go func() {
			r := <-resultCh
			if r.h != nil {
				log.Printf("[PROCSUP] run=%s spawned after initialization timeout elapsed, killing", runID)
				r.h.Kill()
				r.h.Wait()
			}
		}()
		return nil, spawnError(ReasonExecFailed, "spawn did not complete within the initialization timeout", nil)
	}
}

func (s *Supervisor) spawnSync(runID string, spec Spec, profile *sandbox.Profile) (*Handle, error) {
	cmd := exec.Command(s.BinaryPath, BuildArgv(spec)...)
	cmd.Dir = spec.ProjectPath
	cmd.Env = BuildEnv(spec)
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, spawnError(ReasonExecFailed, "open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, spawnError(ReasonExecFailed, "open stderr pipe", err)
	}

	if err := sandbox.Apply(profile, cmd); err != nil {
		return nil, spawnError(ReasonSandboxInitFailed, "apply sandbox profile", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, spawnError(ReasonExecFailed, "start child process", err)
	}

	log.Printf("[PROCSUP] spawned run=%s pid=%d bin=%s", runID, cmd.Process.Pid, s.BinaryPath)

	return &Handle{
		RunID:  runID,
		PID:    cmd.Process.Pid,
		Stdout: stdout,
		Stderr: stderr,
		cmd:    cmd,
	}, nil
}

// Wait blocks until the child exits, reaping its kernel entry. Only the
// first call waits on the process; later calls return its result. The
// monitor task in the Output Router is the caller that guarantees the
// reap (spec §4.3's "supervisor must still eventually wait" invariant).
// Wait does not hold h.mu while blocked, so Kill can run concurrently.
func (h *Handle) Wait() error {
	h.waitOnce.Do(func() {
		h.waitErr = h.cmd.Wait()
	})
	return h.waitErr
}

// Kill sends the platform termination signal to the child. The caller
// must still call Wait afterward so the process is reaped; Kill alone
// does not release the kernel entry.
func (h *Handle) Kill() error {
	h.mu.Lock()
	proc := h.cmd.Process
	h.killed = true
	h.mu.Unlock()
	if proc == nil {
		return nil
	}
	return killProcess(proc)
}

// WasKilled reports whether Kill was ever called on this handle, used by
// the Output Router's waiter to distinguish a cancelled run from one that
// simply exited with a failure (spec §4.5, §8 S2).
func (h *Handle) WasKilled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed
}

// IsAlive reports whether the process still exists, used by the Live
// Registry's reconciliation task (spec §4.4).
func IsAlive(pid int) bool {
	return processAlive(pid)
}
