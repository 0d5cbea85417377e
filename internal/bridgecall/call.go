// Package bridgecall implements the Call orchestrator (spec component
// C7): the object created per accepted telephony connection that wires
// the turn controller (vad), the upstream buffer, the frame pacer, the
// AI connector, and the telephony event parser together, and owns
// every timer and both sockets for the call's lifetime.
package bridgecall

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/birddigital/voicebridge/internal/aiconnector"
	"github.com/birddigital/voicebridge/internal/audioformat"
	"github.com/birddigital/voicebridge/internal/buffer"
	"github.com/birddigital/voicebridge/internal/config"
	"github.com/birddigital/voicebridge/internal/pacer"
	"github.com/birddigital/voicebridge/internal/profile"
	"github.com/birddigital/voicebridge/internal/telephony"
	"github.com/birddigital/voicebridge/internal/vad"
)

// Call is the per-session state the spec's data model (§3) describes:
// identity, the two socket connections, and the pure state machines that
// drive them. The timers are not fields here: runLoop holds them for the
// call's lifetime. All of its exported mutating methods are
// meant to be invoked from the single logical task described in §5; the
// fields marked atomic are the exception, read from the logging/metrics
// path concurrently with the owning task.
type Call struct {
	SessionID   string
	StreamSid   string
	AgentID     string
	Mode        config.Mode
	CallerPhone string
	Authorized  bool
	CreatedAt   time.Time

	totalInbound        atomic.Uint64
	totalOutboundFrames atomic.Uint64
	agentHasSpoken      atomic.Bool

	telConn    telephony.Conn
	telWriteMu sync.Mutex

	ai        *aiconnector.Session
	aiWriteMu sync.Mutex

	turn *vad.Controller
	buf  *buffer.Buffer
	pace *pacer.Pacer

	cfg      *config.Config
	profiles profile.Store

	inputFormat  audioformat.Format
	outputFormat audioformat.Format

	turnUserActivitySent bool

	logSampleRate int
}

// New creates a Call in its initial state: no sockets yet, default
// ulaw_8000/ulaw_8000 audio formats (spec §3's "assumed by default"
// rule), and a buffer sized from the process-wide packet-size tunable.
func New(sessionID string, cfg *config.Config, profiles profile.Store) *Call {
	packetFrames := int(cfg.BufferWindow() / (20 * time.Millisecond))
	return &Call{
		SessionID:     sessionID,
		Mode:          config.ModeDiscovery,
		CreatedAt:     time.Now(),
		turn:          vad.New(),
		buf:           buffer.New(packetFrames),
		pace:          pacer.New(pacer.NewCounters()),
		cfg:           cfg,
		profiles:      profiles,
		inputFormat:   audioformat.UlawNarrowband,
		outputFormat:  audioformat.UlawNarrowband,
		logSampleRate: cfg.LogSampleRate,
	}
}

// TotalInbound returns the number of inbound caller frames received so
// far (diagnostic).
func (c *Call) TotalInbound() uint64 { return c.totalInbound.Load() }

// TotalOutboundFrames returns the number of outbound telephony frames
// emitted so far (diagnostic).
func (c *Call) TotalOutboundFrames() uint64 { return c.totalOutboundFrames.Load() }

// AIOpen reports whether the AI session has been established at all
// (open, ready — anything short of closed/failed).
func (c *Call) AIOpen() bool {
	if c.ai == nil {
		return false
	}
	switch c.ai.State() {
	case aiconnector.StateClosed, aiconnector.StateFailed:
		return false
	default:
		return true
	}
}

// AttachAI wires a connected AI session into the Call.
func (c *Call) AttachAI(session *aiconnector.Session) {
	c.ai = session
}

// AttachTelephony wires the telephony-side socket into the Call.
func (c *Call) AttachTelephony(conn telephony.Conn) {
	c.telConn = conn
}

// ShouldLogFrame reports whether outbound frame n should be logged,
// per the process-wide sample-rate tunable (0 disables sampling).
func (c *Call) ShouldLogFrame(n uint64) bool {
	if c.logSampleRate <= 0 {
		return false
	}
	return n%uint64(c.logSampleRate) == 0
}
