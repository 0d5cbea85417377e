// Package pacer implements the outbound frame pacer (spec component C2).
// It takes whatever audio the AI connector hands it — in any of the
// provider's negotiated output formats — and slices it into exactly
// 20 ms / 160-byte μ-law frames suitable for telephony media events,
// stamping each with the monotonically increasing seq/chunk/tsMs
// counters a Call owns for its lifetime.
//
// The pacer never blocks or sleeps: invariant I1 ("outbound frames are
// exactly 20 ms each") is a framing guarantee, not a real-time pacing
// guarantee — the Call orchestrator does not wait between frames either:
// it writes each frame to the telephony socket as soon as it is produced
// and leaves playback timing to the telephony side.
package pacer

import (
	"fmt"

	"github.com/birddigital/voicebridge/internal/audioformat"
	"github.com/birddigital/voicebridge/internal/codec"
)

// frameBytes is the telephony frame size: 160 μ-law bytes == 20ms @ 8kHz.
const frameBytes = 160

// tsMsStep is the per-frame timestamp increment, in milliseconds.
const tsMsStep = 20

// Frame is one paced, telephony-ready outbound audio frame.
type Frame struct {
	Seq     uint64
	Chunk   uint64
	TsMs    int64
	Payload []byte // exactly frameBytes μ-law bytes
}

// Counters hands out the strictly increasing seq/chunk/tsMs triple a
// single Call uses for the lifetime of its outbound stream (invariant
// I2: these never rewind within a call).
type Counters struct {
	seq   uint64
	chunk uint64
	tsMs  int64
}

// NewCounters creates counters such that the first Next() call yields
// seq=1, chunk=1, tsMs=0.
func NewCounters() *Counters {
	return &Counters{tsMs: -tsMsStep}
}

// Next advances and returns the counters for one outbound frame.
func (c *Counters) Next() (seq, chunk uint64, tsMs int64) {
	c.seq++
	c.chunk++
	c.tsMs += tsMsStep
	return c.seq, c.chunk, c.tsMs
}

// Pacer accumulates converted μ-law bytes across calls to Pace and emits
// only whole 160-byte frames, carrying any remainder forward so every
// emitted frame is exactly 20 ms regardless of how the AI provider
// chunked its audio.
type Pacer struct {
	counters *Counters
	carry    []byte
}

// New creates a Pacer bound to its own counters.
func New(counters *Counters) *Pacer {
	return &Pacer{counters: counters}
}

// Pace converts payload (in the given provider output format) to μ-law
// and slices it into 20 ms frames, stamping each with the next
// seq/chunk/tsMs from the Pacer's counters. Any trailing partial frame
// is held back and prefixed onto the next call's payload.
func (p *Pacer) Pace(payload []byte, format audioformat.Format) ([]Frame, error) {
	ulawBytes, err := toUlaw8kHz(payload, format)
	if err != nil {
		return nil, fmt.Errorf("pacer: %w", err)
	}

	buf := append(p.carry, ulawBytes...)

	var frames []Frame
	i := 0
	for ; i+frameBytes <= len(buf); i += frameBytes {
		seq, chunk, tsMs := p.counters.Next()
		slice := make([]byte, frameBytes)
		copy(slice, buf[i:i+frameBytes])
		frames = append(frames, Frame{Seq: seq, Chunk: chunk, TsMs: tsMs, Payload: slice})
	}

	if i < len(buf) {
		p.carry = append([]byte(nil), buf[i:]...)
	} else {
		p.carry = nil
	}

	return frames, nil
}

// Discard drops any held-back partial frame without emitting it and
// without consuming a seq/chunk/tsMs triple. The Call orchestrator
// calls this on interruption, where the carried bytes belong to audio
// the caller already talked over and must never reach the telephony
// side.
func (p *Pacer) Discard() {
	p.carry = nil
}

// Flush drains any held-back partial frame, right-padding it with
// μ-law silence (0xFF) to a full 20 ms frame. The Call orchestrator
// calls this when the telephony side stops the call, so the remainder
// buffered so far still reaches the caller.
func (p *Pacer) Flush() *Frame {
	if len(p.carry) == 0 {
		return nil
	}
	slice := make([]byte, frameBytes)
	copy(slice, p.carry)
	for i := len(p.carry); i < frameBytes; i++ {
		slice[i] = 0xFF
	}
	p.carry = nil
	seq, chunk, tsMs := p.counters.Next()
	return &Frame{Seq: seq, Chunk: chunk, TsMs: tsMs, Payload: slice}
}

func toUlaw8kHz(payload []byte, format audioformat.Format) ([]byte, error) {
	switch format {
	case audioformat.UlawNarrowband:
		return payload, nil
	case audioformat.PCM16Wideband:
		samples := codec.BytesToInt16LE(payload)
		samples = codec.Downsample16kTo8k(samples)
		return codec.MuLawEncode(samples), nil
	case audioformat.PCM16Narrowband:
		samples := codec.BytesToInt16LE(payload)
		return codec.MuLawEncode(samples), nil
	default:
		return nil, fmt.Errorf("unsupported AI output format %q", format)
	}
}
