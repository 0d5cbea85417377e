package aiconnector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the connector needs. gorilla's
// *websocket.Conn already satisfies this, so production code never
// wraps it; tests supply a fake.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a websocket connection to a provider URL. Production
// code uses NewWebSocketDialer; tests stub this to avoid real network
// I/O.
type Dialer interface {
	Dial(rawURL string, header http.Header) (Conn, error)
}

type wsDialer struct{}

// NewWebSocketDialer returns the production Dialer backed by gorilla's
// default dialer.
func NewWebSocketDialer() Dialer { return wsDialer{} }

func (wsDialer) Dial(rawURL string, header http.Header) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(rawURL, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SignedURLFetcher retrieves a short-lived signed WSS URL for an agent.
type SignedURLFetcher interface {
	Fetch(ctx context.Context, agentID string) (string, error)
}

type httpSignedURLFetcher struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewHTTPSignedURLFetcher returns the production SignedURLFetcher: an
// HTTPS GET against endpoint with the API key in the xi-api-key header,
// per spec §6.
func NewHTTPSignedURLFetcher(endpoint, apiKey string, timeout time.Duration) SignedURLFetcher {
	return &httpSignedURLFetcher{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

func (f *httpSignedURLFetcher) Fetch(ctx context.Context, agentID string) (string, error) {
	reqURL := fmt.Sprintf("%s?agent_id=%s", f.endpoint, url.QueryEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("aiconnector: building signed-url request: %w", err)
	}
	req.Header.Set("xi-api-key", f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("aiconnector: signed-url request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("aiconnector: reading signed-url response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("aiconnector: signed-url endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("aiconnector: malformed signed-url response: %w", err)
	}
	if parsed.SignedURL == "" {
		return "", fmt.Errorf("aiconnector: signed-url response missing signed_url")
	}
	return parsed.SignedURL, nil
}

// Config carries everything Connect needs to reach one agent.
type Config struct {
	APIKey        string
	AgentID       string
	SignedURLBase string        // e.g. https://api.elevenlabs.io/v1/convai/conversation/get_signed_url
	DirectWSSBase string        // e.g. wss://api.elevenlabs.io/v1/convai/conversation
	DialTimeout   time.Duration
}

// Session is an open connection to the AI provider. It tracks the
// open/ready/closed/failed state atomically since the state is read
// from the logging path concurrently with the reader goroutine that
// owns it, matching the "protected atomic flags" rule for AI-state
// transitions.
type Session struct {
	conn      Conn
	viaSigned bool
	state     atomic.Int32
}

func newSession(conn Conn, viaSigned bool) *Session {
	s := &Session{conn: conn, viaSigned: viaSigned}
	s.state.Store(int32(StateOpen))
	return s
}

// Connect implements the C5 connect state machine: attempt a signed
// URL, and on any failure (bad HTTP, dial error) fall back once to a
// direct WSS dial. Both failing is reported as a single error; the
// caller closes telephony with the internal-error code per spec §7.
func Connect(ctx context.Context, dialer Dialer, fetcher SignedURLFetcher, cfg Config) (*Session, error) {
	if signedURL, err := fetcher.Fetch(ctx, cfg.AgentID); err == nil {
		conn, dialErr := dialer.Dial(signedURL, apiKeyHeader(cfg.APIKey))
		if dialErr == nil {
			return newSession(conn, true), nil
		}
	}

	directURL := fmt.Sprintf("%s?agent_id=%s", cfg.DirectWSSBase, url.QueryEscape(cfg.AgentID))
	conn, err := dialer.Dial(directURL, apiKeyHeader(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("aiconnector: signed and direct connect both failed: %w", err)
	}
	return newSession(conn, false), nil
}

func apiKeyHeader(apiKey string) http.Header {
	h := http.Header{}
	h.Set("xi-api-key", apiKey)
	return h
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// ConnectedViaSignedURL reports which transport succeeded, for
// diagnostics.
func (s *Session) ConnectedViaSignedURL() bool {
	return s.viaSigned
}

// MarkReady records that metadata arrived (or the fallback timer
// fired): see invariant I7, buffered audio flushes on this transition.
func (s *Session) MarkReady() {
	s.state.Store(int32(StateReady))
}

// MarkClosed records a graceful close.
func (s *Session) MarkClosed() {
	s.state.Store(int32(StateClosed))
}

// MarkFailed records a fatal transport error.
func (s *Session) MarkFailed() {
	s.state.Store(int32(StateFailed))
}

// ReadMessage blocks for the next inbound text frame.
func (s *Session) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

// Close closes the underlying transport.
func (s *Session) Close() error {
	return s.conn.Close()
}

// CloseNormal sends a normal-closure control frame before closing, for
// the "telephony closed first" path in the error taxonomy (spec §7).
func (s *Session) CloseNormal() error {
	ctrlErr := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	closeErr := s.conn.Close()
	if ctrlErr != nil {
		return fmt.Errorf("aiconnector: sending close control: %w", ctrlErr)
	}
	return closeErr
}

// SendInitiation sends the conversation_initiation_client_data record.
// No voice or prompt overrides are included: the agent's own
// configuration governs those.
func (s *Session) SendInitiation(callerPhone, mode, sessionID string, profile map[string]interface{}) error {
	vars := map[string]interface{}{
		"caller_phone": callerPhone,
		"mode":         mode,
		"session_id":   sessionID,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	if profile != nil {
		vars["profile"] = profile
	}
	return s.conn.WriteJSON(map[string]interface{}{
		"type": "conversation_initiation_client_data",
		"conversation_initiation_client_data": map[string]interface{}{
			"dynamic_variables": vars,
		},
	})
}

// SendAudioChunk sends one user_audio_chunk record carrying base64
// audio in the AI-expected input format.
func (s *Session) SendAudioChunk(base64Payload string) error {
	return s.conn.WriteJSON(map[string]string{"user_audio_chunk": base64Payload})
}

// SendUserAudioStart marks the beginning of a caller turn.
func (s *Session) SendUserAudioStart() error {
	return s.conn.WriteJSON(map[string]string{"type": "user_audio_start"})
}

// SendUserAudioEnd marks the end of a caller turn.
func (s *Session) SendUserAudioEnd() error {
	return s.conn.WriteJSON(map[string]string{"type": "user_audio_end"})
}

// SendUserActivity nudges the AI that the caller is active, once per
// caller utterance after an agent utterance (spec §9 Open Question
// resolution).
func (s *Session) SendUserActivity() error {
	return s.conn.WriteJSON(map[string]string{"type": "user_activity"})
}

// SendNudgeMessage sends a short text nudge to provoke a first agent
// utterance.
func (s *Session) SendNudgeMessage(message string) error {
	return s.conn.WriteJSON(map[string]interface{}{
		"type": "user_message",
		"user_message": map[string]string{
			"message": message,
		},
	})
}

// SendConversationStart sends the alternative conversation_start nudge.
func (s *Session) SendConversationStart() error {
	return s.conn.WriteJSON(map[string]string{"type": "conversation_start"})
}

// SendPong answers a provider keepalive ping with the same event id.
func (s *Session) SendPong(eventID string) error {
	return s.conn.WriteJSON(map[string]string{"type": "pong", "event_id": eventID})
}
