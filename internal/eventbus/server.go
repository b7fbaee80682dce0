// Package eventbus is the Output Router's transport: an embedded NATS
// server plus a thin pub/sub wrapper exposing the same bounded-channel,
// lag-on-overflow subscriber contract the rest of sentinel depends on
// (spec §4.5).
package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServerConfig configures the in-process NATS server.
type EmbeddedServerConfig struct {
	Port int // 0 uses the NATS default port (4222); -1 picks an OS-assigned free port, used by tests
}

// EmbeddedServer wraps an in-process NATS server so sentineld needs no
// external broker.
type EmbeddedServer struct {
	srv     *server.Server
	mu      sync.RWMutex
	running bool
}

// NewEmbeddedServer builds and starts an embedded NATS server, blocking
// until it accepts connections.
func NewEmbeddedServer(cfg EmbeddedServerConfig) (*EmbeddedServer, error) {
	e := &EmbeddedServer{}
	if err := e.start(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *EmbeddedServer) start(cfg EmbeddedServerConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("eventbus: embedded server already running")
	}

	opts := &server.Options{
		Host:   "127.0.0.1",
		Port:   cfg.Port,
		NoSigs: true,
		NoLog:  true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("eventbus: create embedded server: %w", err)
	}
	e.srv = ns

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		return fmt.Errorf("eventbus: embedded server not ready for connections")
	}

	e.running = true
	return nil
}

// ClientURL returns the URL sentineld's own publishers/subscribers use to
// connect to the embedded server.
func (e *EmbeddedServer) ClientURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.srv == nil {
		return ""
	}
	return e.srv.ClientURL()
}

// Shutdown stops the embedded server and waits for it to fully drain.
func (e *EmbeddedServer) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.srv == nil {
		return
	}
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
	e.running = false
	e.srv = nil
}
