package bridgecall

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/birddigital/voicebridge/internal/audioformat"
	"github.com/birddigital/voicebridge/internal/codec"
	"github.com/birddigital/voicebridge/internal/pacer"
	"github.com/birddigital/voicebridge/internal/telephony"
)

// HandleCallerFrame feeds one inbound 20ms μ-law caller frame into the
// turn controller and the upstream buffer. It reports whether this
// frame opened a new turn, so the caller can emit user_audio_start and
// arm the hard-cap timer.
func (c *Call) HandleCallerFrame(now time.Time, payload []byte) (turnStarted bool) {
	c.totalInbound.Add(1)
	entered := c.turn.OnCallerFrame(now, c.AIOpen())
	if entered {
		c.turnUserActivitySent = false
	}
	c.buf.Add(payload)
	return entered
}

// ReadyToFlushBuffer reports whether the upstream buffer should be
// flushed right now under the "instant" trigger (spec §4.4).
func (c *Call) ReadyToFlushBuffer() bool {
	return c.buf.ReadyToFlush(c.AIOpen())
}

// ReadyToFlushBufferPeriodic reports the periodic-ticker trigger,
// independent of AI socket state.
func (c *Call) ReadyToFlushBufferPeriodic() bool {
	return c.buf.ReadyToFlushPeriodic()
}

// FlushBufferToAI drains the upstream buffer and sends one
// user_audio_chunk per buffered 20ms frame, converted to the AI's
// negotiated input format. Flushing an empty buffer is a no-op.
func (c *Call) FlushBufferToAI() error {
	frames := c.buf.Flush()
	for _, f := range frames {
		converted, err := convertToAIInputFormat(f, c.inputFormat)
		if err != nil {
			return err
		}
		if err := c.sendAudioChunk(converted); err != nil {
			return fmt.Errorf("bridgecall: sending user_audio_chunk: %w", err)
		}
	}
	return nil
}

func (c *Call) sendAudioChunk(payload []byte) error {
	c.aiWriteMu.Lock()
	defer c.aiWriteMu.Unlock()
	return c.ai.SendAudioChunk(base64.StdEncoding.EncodeToString(payload))
}

// convertToAIInputFormat converts one 160-byte μ-law inbound frame to
// the AI provider's negotiated input format.
func convertToAIInputFormat(ulawFrame []byte, format audioformat.Format) ([]byte, error) {
	switch format {
	case audioformat.UlawNarrowband:
		return ulawFrame, nil
	case audioformat.PCM16Narrowband:
		samples := codec.MuLawDecode(ulawFrame)
		return codec.Int16ToBytesLE(samples), nil
	case audioformat.PCM16Wideband:
		samples := codec.MuLawDecode(ulawFrame)
		samples = codec.Upsample8kTo16k(samples)
		return codec.Int16ToBytesLE(samples), nil
	default:
		return nil, fmt.Errorf("bridgecall: unsupported AI input format %q", format)
	}
}

// HandleAgentAudio paces one inbound AI audio payload into 20ms
// telephony-ready frames and records the agent as having spoken. It
// resets any open caller turn to idle (the AI has taken the turn) but
// does not synthesize a user_audio_end — the VAD never does (spec
// §4.3's tie-breaking rule).
func (c *Call) HandleAgentAudio(now time.Time, payload []byte) ([]pacer.Frame, error) {
	c.agentHasSpoken.Store(true)
	c.turn.OnAgentOutput(now)

	frames, err := c.pace.Pace(payload, c.outputFormat)
	if err != nil {
		return nil, err
	}
	c.totalOutboundFrames.Add(uint64(len(frames)))
	return frames, nil
}

// FlushAgentAudio drains any partial frame the pacer is still holding
// and returns it so the caller can write it to telephony before the
// call ends — otherwise the last fraction of a second of the agent's
// final words never leaves the pacer's carry.
func (c *Call) FlushAgentAudio() *pacer.Frame {
	f := c.pace.Flush()
	if f != nil {
		c.totalOutboundFrames.Add(1)
	}
	return f
}

// SendTelephonyFrame writes one paced frame's media+mark record pair to
// the telephony socket, serialized against concurrent writers.
func (c *Call) SendTelephonyFrame(f pacer.Frame) error {
	c.telWriteMu.Lock()
	defer c.telWriteMu.Unlock()

	payloadB64 := base64.StdEncoding.EncodeToString(f.Payload)
	if err := telephony.SendMedia(c.telConn, c.StreamSid, f.Seq, f.Chunk, f.TsMs, payloadB64); err != nil {
		return err
	}
	return telephony.SendMark(c.telConn, c.StreamSid, f.Chunk)
}
