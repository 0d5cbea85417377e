package bridgecall

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/birddigital/voicebridge/internal/aiconnector"
	"github.com/birddigital/voicebridge/internal/pacer"
	"github.com/birddigital/voicebridge/internal/telephony"
)

// AIEffect is what the orchestrator must do in response to one
// classified inbound AI record. Fields are zero-valued when there is
// nothing to do.
type AIEffect struct {
	Frames          []pacer.Frame
	SendClear       bool
	BecameReady     bool
	Terminate       bool
	TerminateReason string
}

// ApplyAIInbound dispatches one classified AI record per the taxonomy
// in spec §4.5. Ping replies are sent immediately (they carry no
// telephony-side effect); everything else is reported back as an
// AIEffect for the orchestrator to act on.
func (c *Call) ApplyAIInbound(now time.Time, in aiconnector.Inbound) (AIEffect, error) {
	switch in.Kind {
	case aiconnector.KindMetadata:
		if in.UserInputFormat != "" {
			c.inputFormat = in.UserInputFormat
		}
		if in.AgentOutputFormat != "" {
			c.outputFormat = in.AgentOutputFormat
		}
		becameReady := c.ai.State() != aiconnector.StateReady
		c.ai.MarkReady()
		return AIEffect{BecameReady: becameReady}, nil

	case aiconnector.KindAudio:
		payload, err := base64.StdEncoding.DecodeString(in.AudioBase64)
		if err != nil {
			return AIEffect{}, fmt.Errorf("bridgecall: decoding agent audio payload: %w", err)
		}
		frames, err := c.HandleAgentAudio(now, payload)
		if err != nil {
			return AIEffect{}, err
		}
		return AIEffect{Frames: frames}, nil

	case aiconnector.KindPing:
		c.aiWriteMu.Lock()
		err := c.ai.SendPong(in.PingEventID)
		c.aiWriteMu.Unlock()
		return AIEffect{}, err

	case aiconnector.KindInterruption:
		// Forwarded unconditionally on every interruption (spec §9 Open
		// Question resolution); the telephony side treats clear against
		// an empty buffer as a no-op. Any partial frame still held by
		// the pacer belongs to the interrupted utterance and must be
		// dropped, not spliced onto whatever the agent says next.
		c.pace.Discard()
		return AIEffect{SendClear: true}, nil

	case aiconnector.KindError:
		return AIEffect{Terminate: true, TerminateReason: in.Message}, nil

	default:
		// Diagnostic and unknown records: logged by the caller, no effect.
		return AIEffect{}, nil
	}
}

// SendClear writes the clear record to telephony on AI interruption.
func (c *Call) SendClear() error {
	c.telWriteMu.Lock()
	defer c.telWriteMu.Unlock()
	return telephony.SendClear(c.telConn, c.StreamSid)
}
