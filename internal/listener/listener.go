// Package listener implements the bridge's HTTP/WebSocket front door
// (spec component C8): upgrading inbound telephony connections, tracking
// live calls for the diagnostic status endpoint, and propagating process
// shutdown to every call in flight. It follows the teacher's
// CallHandlers/SignalWireAudioBridge split, collapsed into one type
// since this bridge has no separate TwiML/REST call-control surface.
package listener

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/birddigital/voicebridge/internal/aiconnector"
	"github.com/birddigital/voicebridge/internal/bridgecall"
	"github.com/birddigital/voicebridge/internal/config"
	"github.com/birddigital/voicebridge/internal/profile"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Listener owns the live call registry and the dependencies every new
// Call needs (config, profile store, AI dialer/fetcher).
type Listener struct {
	cfg      *config.Config
	profiles profile.Store
	dialer   aiconnector.Dialer
	fetcher  aiconnector.SignedURLFetcher

	rootCtx context.Context
	cancel  context.CancelFunc

	mu    sync.RWMutex
	calls map[string]*bridgecall.Call

	wg sync.WaitGroup
}

// New creates a Listener. dialer/fetcher are accepted as interfaces so
// tests can substitute fakes; production wiring passes
// aiconnector.NewWebSocketDialer() and aiconnector.NewHTTPSignedURLFetcher(...).
// Every Call launched by HandleWebSocket shares one root context, cancelled
// by Shutdown so a SIGINT/SIGTERM propagates to every call in flight.
func New(cfg *config.Config, profiles profile.Store, dialer aiconnector.Dialer, fetcher aiconnector.SignedURLFetcher) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		cfg:      cfg,
		profiles: profiles,
		dialer:   dialer,
		fetcher:  fetcher,
		rootCtx:  ctx,
		cancel:   cancel,
		calls:    make(map[string]*bridgecall.Call),
	}
}

// RegisterRoutes wires every handler onto mux, matching the teacher's
// RegisterRoutes convention in pkg/telephony/call-handlers.go.
func (l *Listener) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", l.HandleWebSocket)
	mux.HandleFunc("/media-stream", l.HandleWebSocket)

	mux.HandleFunc("/health", l.HandleHealth)
	mux.HandleFunc("/", l.HandleHealth)
	mux.HandleFunc("/status", l.HandleHealth)
	mux.HandleFunc("/status/", l.HandleCallStatus)

	log.Printf("[Listener] registered routes")
}

// HandleHealth answers liveness probes with a 200 and a short body.
func (l *Listener) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// callStatus is the JSON shape the per-call diagnostic endpoint returns,
// the encoding/json equivalent of the teacher's %+v placeholder in
// HandleBridgeStatus/HandleBridgeMetrics.
type callStatus struct {
	SessionID           string `json:"session_id"`
	StreamSid           string `json:"stream_sid"`
	AgentID             string `json:"agent_id"`
	Mode                string `json:"mode"`
	Authorized          bool   `json:"authorized"`
	AIOpen              bool   `json:"ai_open"`
	TotalInbound        uint64 `json:"total_inbound_frames"`
	TotalOutboundFrames uint64 `json:"total_outbound_frames"`
	CreatedAt           string `json:"created_at"`
}

// HandleCallStatus returns one live call's diagnostic snapshot as JSON.
func (l *Listener) HandleCallStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/status/")
	if sessionID == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	l.mu.RLock()
	call, ok := l.calls[sessionID]
	l.mu.RUnlock()
	if !ok {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}

	status := callStatus{
		SessionID:           call.SessionID,
		StreamSid:           call.StreamSid,
		AgentID:             call.AgentID,
		Mode:                string(call.Mode),
		Authorized:          call.Authorized,
		AIOpen:              call.AIOpen(),
		TotalInbound:        call.TotalInbound(),
		TotalOutboundFrames: call.TotalOutboundFrames(),
		CreatedAt:           call.CreatedAt.UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("[Listener] encoding status for %s: %v", sessionID, err)
	}
}

// HandleWebSocket rejects mismatched ?token=<t> bearer values before
// upgrading — no socket is opened and no Call is created for a bad
// token — then upgrades one inbound telephony connection and runs its
// Call to completion in its own goroutine, matching the teacher's
// go callSession.readPump()/writePump() fire-and-forget launch pattern.
func (l *Listener) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if l.cfg.AuthToken != "" && r.URL.Query().Get("token") != l.cfg.AuthToken {
		log.Printf("[Listener] rejecting upgrade: token mismatch")
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Listener] websocket upgrade failed: %v", err)
		return
	}

	sessionID := uuid.New().String()
	call := bridgecall.New(sessionID, l.cfg, l.profiles)

	l.mu.Lock()
	l.calls[sessionID] = call
	l.mu.Unlock()

	log.Printf("[Listener] accepted connection, session %s", sessionID)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.forget(sessionID)
		defer call.Cleanup()

		if err := bridgecall.Run(l.rootCtx, call, conn, l.dialer, l.fetcher); err != nil {
			log.Printf("[Listener] call %s ended: %v", sessionID, err)
		} else {
			log.Printf("[Listener] call %s ended cleanly", sessionID)
		}
	}()
}

func (l *Listener) forget(sessionID string) {
	l.mu.Lock()
	delete(l.calls, sessionID)
	l.mu.Unlock()
}

// Shutdown cancels the shared root context, which unblocks every live
// Call's orchestrator loop, then waits up to grace for each Call's
// goroutine to run its deferred Cleanup (closing both sockets) and
// exit. It reports whether every call drained in time, the natural
// generalization of the teacher's AudioStreamBridge.Close()/
// SignalWireAudioBridge.Close() pair to a graceful, bounded shutdown.
func (l *Listener) Shutdown(grace time.Duration) (drained bool) {
	l.cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(grace):
		l.mu.RLock()
		remaining := len(l.calls)
		l.mu.RUnlock()
		log.Printf("[Listener] shutdown grace period elapsed with %d call(s) still open", remaining)
		return false
	}
}
