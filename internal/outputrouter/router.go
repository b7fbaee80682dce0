package outputrouter

import (
	"bufio"
	"io"
	"log"
	"sync"

	"github.com/harborctl/sentinel/internal/eventbus"
	"github.com/harborctl/sentinel/internal/procsup"
	"github.com/harborctl/sentinel/internal/types"
)

// LiveRegistry is the subset of internal/registry the pumps need.
type LiveRegistry interface {
	AppendOutput(runID string, line []byte)
	Unregister(runID string)
}

// CatalogStore is the subset of internal/catalog the router needs.
type CatalogStore interface {
	SetRunSessionToken(id, token string) error
	UpdateRunStatus(id string, status types.RunStatus, pid int, errMsg string) error
}

// EventPublisher is the subset of internal/eventbus the router needs.
type EventPublisher interface {
	Publish(topic string, data []byte) error
}

// Router wires a spawned process's stdout/stderr/exit into the event
// bus, the live registry's ring buffer, and the durable per-run log
// (spec §4.5).
type Router struct {
	Bus      EventPublisher
	Registry LiveRegistry
	Catalog  CatalogStore
	StateDir string
}

// Route launches the stdout pump, stderr pump, and waiter for one run.
// It returns immediately; the three tasks run in their own goroutines.
func (r *Router) Route(runID string, handle *procsup.Handle) {
	dlog, err := OpenDurableLog(r.StateDir, runID)
	if err != nil {
		log.Printf("[OUTPUTROUTER] run %s: failed to open durable log: %v", runID, err)
		return
	}

	var tokenOnce sync.Once
	var pumpWG sync.WaitGroup
	pumpWG.Add(2)

	go r.pump(runID, handle.Stdout, eventbus.OutputTopic(runID), dlog.AppendStdout, &tokenOnce, &pumpWG)
	go r.pump(runID, handle.Stderr, eventbus.ErrorTopic(runID), dlog.AppendStderr, &tokenOnce, &pumpWG)

	go r.waiter(runID, handle, dlog, &pumpWG)
}

func (r *Router) pump(runID string, stream io.Reader, topic string, appendLog func(string) error, tokenOnce *sync.Once, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()

		if err := r.Bus.Publish(topic, []byte(line)); err != nil {
			log.Printf("[OUTPUTROUTER] run %s: publish to %s: %v", runID, topic, err)
		}
		r.Registry.AppendOutput(runID, []byte(line+"\n"))
		if err := appendLog(line); err != nil {
			log.Printf("[OUTPUTROUTER] run %s: durable log write: %v", runID, err)
		}

		if id, ok := extractSessionID(line); ok {
			tokenOnce.Do(func() {
				if err := r.Catalog.SetRunSessionToken(runID, id); err != nil {
					log.Printf("[OUTPUTROUTER] run %s: set session token: %v", runID, err)
				}
			})
		}
	}
}

func (r *Router) waiter(runID string, handle *procsup.Handle, dlog *DurableLog, pumpWG *sync.WaitGroup) {
	err := handle.Wait()
	pumpWG.Wait() // pumps drain remaining buffered output before completion fires
	dlog.Close()

	success := err == nil
	status := types.RunCompleted
	errMsg := ""
	if !success {
		status = types.RunFailed
		if handle.WasKilled() {
			status = types.RunCancelled
		}
		errMsg = err.Error()
	}

	if pubErr := r.Bus.Publish(eventbus.CompleteTopic(runID), []byte(completePayload(success))); pubErr != nil {
		log.Printf("[OUTPUTROUTER] run %s: publish complete event: %v", runID, pubErr)
	}
	if updErr := r.Catalog.UpdateRunStatus(runID, status, 0, errMsg); updErr != nil {
		log.Printf("[OUTPUTROUTER] run %s: update catalog status: %v", runID, updErr)
	}
	r.Registry.Unregister(runID)
}

func completePayload(success bool) string {
	if success {
		return `{"success":true}`
	}
	return `{"success":false}`
}
