package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/commandsurface"
	"github.com/harborctl/sentinel/internal/eventbus"
)

// Server is the Command Surface's HTTP transport (spec §4.10): gorilla/mux
// handles request/response RPCs, gorilla/websocket streams the GUI's
// output:{run_id}/error:{run_id}/complete:{run_id} subscriptions,
// grounded on the teacher's server.go+hub.go pairing.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	hub        *Hub
	surface    *commandsurface.Surface
	bus        *eventbus.Bus
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewServer wires every RPC route to surface and returns a Server ready
// for ListenAndServe.
func NewServer(surface *commandsurface.Surface, bus *eventbus.Bus, addr string) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		hub:     NewHub(),
		surface: surface,
		bus:     bus,
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           securityHeaders(s.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts the HTTP server; blocks until it stops or errors.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/runs/agent", s.handleExecuteAgent).Methods("POST")
	api.HandleFunc("/runs/session", s.handleExecuteSession).Methods("POST")
	api.HandleFunc("/runs/session/continue", s.handleContinueSession).Methods("POST")
	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}/output", s.handleGetLiveOutput).Methods("GET")
	api.HandleFunc("/runs/{id}/kill", s.handleKillRun).Methods("POST")

	api.HandleFunc("/agents", s.handleListAgents).Methods("GET")
	api.HandleFunc("/agents", s.handleCreateAgent).Methods("POST")
	api.HandleFunc("/agents/{id}", s.handleUpdateAgent).Methods("PUT")
	api.HandleFunc("/agents/{id}", s.handleDeleteAgent).Methods("DELETE")

	api.HandleFunc("/sandbox/profiles", s.handleListSandboxProfiles).Methods("GET")
	api.HandleFunc("/sandbox/profiles", s.handleCreateSandboxProfile).Methods("POST")
	api.HandleFunc("/sandbox/profiles/{id}/default", s.handleSetDefaultSandboxProfile).Methods("POST")
	api.HandleFunc("/sandbox/capabilities", s.handleGetPlatformCapabilities).Methods("GET")

	api.HandleFunc("/sessions/{id}/timeline", s.handleGetSessionTimeline).Methods("GET")
	api.HandleFunc("/sessions/{id}/checkpoints", s.handleCreateCheckpoint).Methods("POST")
	api.HandleFunc("/sessions/{id}/checkpoints/{checkpoint}/restore", s.handleRestoreCheckpoint).Methods("POST")
	api.HandleFunc("/sessions/{id}/checkpoints/{checkpoint}/fork", s.handleForkCheckpoint).Methods("POST")
	api.HandleFunc("/sessions/{id}/checkpoints/settings", s.handleCheckpointSettings).Methods("GET", "PUT")
	api.HandleFunc("/sessions/{id}/checkpoints/cleanup", s.handleCleanupCheckpoints).Methods("POST")
	api.HandleFunc("/sessions/{id}/checkpoints/diff", s.handleGetCheckpointDiff).Methods("GET")

	s.router.HandleFunc("/ws/{topic}/{runID}", s.handleWebSocket)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	topicKind, runID := vars["topic"], vars["runID"]

	var topic string
	switch topicKind {
	case "output":
		topic = eventbus.OutputTopic(runID)
	case "error":
		topic = eventbus.ErrorTopic(runID)
	case "complete":
		topic = eventbus.CompleteTopic(runID)
	default:
		http.Error(w, "unknown topic kind: "+topicKind, http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HTTPAPI] websocket upgrade failed: %v", err)
		return
	}

	client := &Client{hub: s.hub, conn: conn, topic: topic, send: make(chan []byte, sendBufferSize)}
	s.hub.register(client)

	sub, unsubscribe, err := s.bus.Subscribe(topic)
	if err != nil {
		log.Printf("[HTTPAPI] subscribe to %s failed: %v", topic, err)
		s.hub.unregister(client)
		conn.Close()
		return
	}

	go func() {
		for ev := range sub.Ch {
			s.hub.BroadcastTopic(ev.Topic, ev.Data)
		}
	}()

	go func() {
		defer unsubscribe()
		client.writePump()
	}()
	client.readPump()
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError maps the typed error taxonomy of spec §7 onto HTTP status
// codes, the one place in this module errors become wire format.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUnavailable:
		status = http.StatusServiceUnavailable
	case apperr.KindSandboxViolation:
		status = http.StatusForbidden
	case apperr.KindCorruption:
		status = http.StatusUnprocessableEntity
	case apperr.KindTransient:
		status = http.StatusTooManyRequests
	}
	log.Printf("[HTTPAPI] error status=%d: %v", status, err)
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// securityHeaders strips version-revealing headers, adapted from the
// teacher's SecurityHeadersMiddleware.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "sentineld")
		next.ServeHTTP(w, r)
	})
}
