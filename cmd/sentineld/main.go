// Command sentineld is the supervisor backend of spec §1: it spawns and
// monitors the external AI tool's processes, multiplexes their output,
// and maintains the content-addressed checkpoint store. The GUI layer,
// directory-browsing views, and CLI-wrapper commands are out of scope
// (spec §1) and talk to this process only through the Command Surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/catalog"
	"github.com/harborctl/sentinel/internal/commandsurface"
	"github.com/harborctl/sentinel/internal/config"
	"github.com/harborctl/sentinel/internal/eventbus"
	"github.com/harborctl/sentinel/internal/httpapi"
	"github.com/harborctl/sentinel/internal/managerdir"
	"github.com/harborctl/sentinel/internal/outputrouter"
	"github.com/harborctl/sentinel/internal/procsup"
	"github.com/harborctl/sentinel/internal/registry"
	"github.com/harborctl/sentinel/internal/sandbox"
	"github.com/harborctl/sentinel/internal/snapshot"
)

// Exit codes: the spawn helper's own return codes, distinct from the
// child AI tool's own exit status (spec §6).
const (
	exitOK                 = 0
	exitInvalidArgs        = 64
	exitBinaryNotFound     = 69
	exitSandboxInitFailure = 70
	exitCatalogUnavailable = 71
)

func main() {
	// Dispatched into before any normal startup work when this binary was
	// re-exec'd by its own sandbox.Apply as the Landlock self-exec wrapper
	// (Linux only); see internal/sandbox's Apply/RunSelfExecHelper pair.
	// RunSelfExecHelper never returns on success since it replaces this
	// process image via exec.
	if len(os.Args) > 1 && os.Args[1] == sandbox.SandboxExecArg {
		if err := sandbox.RunSelfExecHelper(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "sentineld: sandbox self-exec: %v\n", err)
			os.Exit(1)
		}
		return
	}
	os.Exit(run())
}

func run() int {
	stateDir := flag.String("state-dir", defaultStateDir(), "state directory override (SENTINEL_STATE_DIR)")
	binaryPath := flag.String("claude-bin", os.Getenv("SENTINEL_CLAUDE_BIN"), "configured AI tool binary path")
	logLevel := flag.String("log-level", envOr("SENTINEL_LOG_LEVEL", "info"), "log level")
	extraEnv := flag.String("extra-env", os.Getenv("SENTINEL_EXTRA_ENV"), "comma-separated extra inherited environment variable names")
	httpAddr := flag.String("http-addr", envOr("SENTINEL_HTTP_ADDR", "127.0.0.1:8787"), "Command Surface HTTP/WS listen address")
	seedFile := flag.String("seed-file", os.Getenv("SENTINEL_SEED_FILE"), "optional YAML file seeding agent templates and sandbox rules on startup")
	flag.Parse()

	if *stateDir == "" {
		fmt.Fprintln(os.Stderr, "sentineld: -state-dir must not be empty")
		return exitInvalidArgs
	}

	log.Printf("[SENTINELD] starting, state_dir=%s log_level=%s", *stateDir, *logLevel)

	if err := os.MkdirAll(*stateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "sentineld: create state dir: %v\n", err)
		return exitCatalogUnavailable
	}

	cat, err := catalog.Open(filepath.Join(*stateDir, "catalog.sqlite"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentineld: open catalog: %v\n", err)
		return exitCatalogUnavailable
	}
	defer cat.Close()

	if *seedFile != "" {
		sf, err := config.Load(*seedFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sentineld: load seed file: %v\n", err)
			return exitInvalidArgs
		}
		if err := config.Apply(cat, sf); err != nil {
			fmt.Fprintf(os.Stderr, "sentineld: apply seed file: %v\n", err)
			return exitCatalogUnavailable
		}
		log.Printf("[SENTINELD] applied seed file %s", *seedFile)
	}

	supervisor, err := procsup.NewSupervisor(*binaryPath)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnavailable {
			fmt.Fprintf(os.Stderr, "sentineld: %v\n", err)
			return exitBinaryNotFound
		}
		fmt.Fprintf(os.Stderr, "sentineld: init supervisor: %v\n", err)
		return exitSandboxInitFailure
	}

	embedded, err := eventbus.NewEmbeddedServer(eventbus.EmbeddedServerConfig{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentineld: start embedded event bus: %v\n", err)
		return exitCatalogUnavailable
	}
	defer embedded.Shutdown()

	bus, err := eventbus.Connect(embedded.ClientURL())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentineld: connect to event bus: %v\n", err)
		return exitCatalogUnavailable
	}
	defer bus.Close()

	reg := registry.New()
	router := &outputrouter.Router{Bus: bus, Registry: reg, Catalog: cat, StateDir: *stateDir}
	store := &snapshot.Store{StateDir: *stateDir}
	managers := managerdir.New(store)

	home, _ := os.UserHomeDir()
	surface := &commandsurface.Surface{
		Catalog:           cat,
		Registry:          reg,
		Supervisor:        supervisor,
		Router:            router,
		Bus:               bus,
		Builder:           sandbox.NewBuilder(),
		Managers:          managers,
		Store:             store,
		HomeDir:           home,
		ExtraEnvAllowList: splitCSV(*extraEnv),
	}

	reconciler := registry.NewReconciler(reg, cat)
	go reconciler.Start()
	defer reconciler.Stop()

	httpSrv := httpapi.NewServer(surface, bus, *httpAddr)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[SENTINELD] http server stopped: %v", err)
		}
	}()

	log.Printf("[SENTINELD] ready, http_addr=%s", *httpAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Printf("[SENTINELD] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	managers.Clear()
	return exitOK
}

func defaultStateDir() string {
	if v := os.Getenv("SENTINEL_STATE_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sentinel"
	}
	return filepath.Join(home, ".sentinel")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
