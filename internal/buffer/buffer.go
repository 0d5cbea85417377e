// Package buffer implements the upstream caller-audio buffer (spec
// component C4): it accumulates inbound 20 ms μ-law frames in arrival
// order and reports when enough have accumulated to flush upstream to
// the AI connector. The buffer itself never performs I/O; the caller
// decides what "flush" means (re-chunk, base64, send).
package buffer

// Buffer accumulates inbound caller audio frames until a packet-sized
// group is ready to forward to the AI provider.
type Buffer struct {
	packetSizeFrames int
	frames           [][]byte
}

// New creates a Buffer that considers itself ready to flush once it
// holds packetSizeFrames 20 ms frames (10 frames == 200 ms by default).
func New(packetSizeFrames int) *Buffer {
	if packetSizeFrames <= 0 {
		packetSizeFrames = 1
	}
	return &Buffer{packetSizeFrames: packetSizeFrames}
}

// Add appends one inbound frame in arrival order.
func (b *Buffer) Add(frame []byte) {
	b.frames = append(b.frames, frame)
}

// Len returns the number of frames currently buffered.
func (b *Buffer) Len() int {
	return len(b.frames)
}

// ReadyToFlush reports the "instant" flush trigger: enough frames have
// accumulated and the AI socket can currently accept audio.
func (b *Buffer) ReadyToFlush(aiSocketOpen bool) bool {
	return aiSocketOpen && len(b.frames) >= b.packetSizeFrames
}

// ReadyToFlushPeriodic reports the "periodic" flush trigger used by the
// ~50 ms poller: at least a full packet is waiting, regardless of AI
// socket state (the caller is still expected to gate the actual send on
// socket state; this only decides whether there is enough to act on).
func (b *Buffer) ReadyToFlushPeriodic() bool {
	return len(b.frames) >= b.packetSizeFrames
}

// Flush returns all buffered frames in arrival order and clears the
// buffer. Flushing an empty buffer is a no-op: it returns nil.
func (b *Buffer) Flush() [][]byte {
	if len(b.frames) == 0 {
		return nil
	}
	out := b.frames
	b.frames = nil
	return out
}
