package listener

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/birddigital/voicebridge/internal/bridgecall"
	"github.com/birddigital/voicebridge/internal/config"
	"github.com/birddigital/voicebridge/internal/profile"
)

func testListener() *Listener {
	cfg := &config.Config{AIAPIKey: "key", DiscoveryAgentID: "agent"}
	return New(cfg, profile.NewNoop(), nil, nil)
}

func TestHandleHealthReturnsOK(t *testing.T) {
	l := testListener()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	l.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestHandleCallStatusMissingSessionID(t *testing.T) {
	l := testListener()
	req := httptest.NewRequest(http.MethodGet, "/status/", nil)
	rec := httptest.NewRecorder()

	l.HandleCallStatus(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCallStatusUnknownSession(t *testing.T) {
	l := testListener()
	req := httptest.NewRequest(http.MethodGet, "/status/does-not-exist", nil)
	rec := httptest.NewRecorder()

	l.HandleCallStatus(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleCallStatusReturnsRegisteredCallJSON(t *testing.T) {
	l := testListener()
	call := bridgecall.New("sess-1", l.cfg, l.profiles)
	l.calls["sess-1"] = call

	req := httptest.NewRequest(http.MethodGet, "/status/sess-1", nil)
	rec := httptest.NewRecorder()
	l.HandleCallStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), `"session_id":"sess-1"`) {
		t.Errorf("body = %s, missing session_id", rec.Body.String())
	}
}

func TestHandleWebSocketRejectsTokenMismatchWithoutUpgrading(t *testing.T) {
	cfg := &config.Config{AIAPIKey: "key", DiscoveryAgentID: "agent", AuthToken: "correct-token"}
	l := New(cfg, profile.NewNoop(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ws?token=wrong", nil)
	rec := httptest.NewRecorder()

	l.HandleWebSocket(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if len(l.calls) != 0 {
		t.Errorf("expected no Call to be registered on token mismatch, got %d", len(l.calls))
	}
}

func TestHandleWebSocketAllowsMissingTokenWhenAuthDisabled(t *testing.T) {
	cfg := &config.Config{AIAPIKey: "key", DiscoveryAgentID: "agent"}
	l := New(cfg, profile.NewNoop(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()

	l.HandleWebSocket(rec, req)

	if rec.Code == http.StatusForbidden {
		t.Errorf("token check should be disabled when AuthToken is empty, got 403")
	}
}

func TestShutdownWithNoCallsReturnsImmediately(t *testing.T) {
	l := testListener()
	if !l.Shutdown(time.Second) {
		t.Error("expected Shutdown to report fully drained with zero live calls")
	}
}
