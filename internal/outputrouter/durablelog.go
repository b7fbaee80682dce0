// Package outputrouter runs the three concurrent tasks spec §4.5 assigns
// to every spawned process: a stdout pump, a stderr pump, and a waiter.
package outputrouter

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DurableLog is the append-only, flush-on-line-boundary per-run log file
// under <state_dir>/runs/<run_id>.jsonl (spec §4.5).
type DurableLog struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// OpenDurableLog opens (creating if absent) the run's log file in
// append mode.
func OpenDurableLog(stateDir, runID string) (*DurableLog, error) {
	dir := filepath.Join(stateDir, "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("outputrouter: create runs dir: %w", err)
	}
	path := filepath.Join(dir, runID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("outputrouter: open durable log: %w", err)
	}
	return &DurableLog{file: f, writer: bufio.NewWriter(f)}, nil
}

// AppendStdout writes an unprefixed line.
func (d *DurableLog) AppendStdout(line string) error {
	return d.append(line)
}

// AppendStderr writes a line prefixed "E\t" (spec §4.5's stderr marker).
func (d *DurableLog) AppendStderr(line string) error {
	return d.append("E\t" + line)
}

func (d *DurableLog) append(line string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.writer.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("outputrouter: write durable log: %w", err)
	}
	return d.writer.Flush()
}

// Close flushes and closes the underlying file.
func (d *DurableLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		return err
	}
	return d.file.Close()
}
