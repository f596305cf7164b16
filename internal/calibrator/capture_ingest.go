package calibrator

import (
	"encoding/binary"
	"math"

	"github.com/smallnest/ringbuffer"
)

// captureIngest is the handoff between the microphone's realtime capture
// thread (Write, never blocking) and the calibrator's background
// processing goroutine (drain, on its own schedule). A plain FIFO byte
// stream is the right shape here — unlike sampleRing's indexed
// window queries, this is pure producer/consumer drain — so it is backed
// by smallnest/ringbuffer rather than hand-rolled.
type captureIngest struct {
	buf *ringbuffer.RingBuffer
}

func newCaptureIngest(capacityBytes int) *captureIngest {
	return &captureIngest{buf: ringbuffer.New(capacityBytes)}
}

// writeFloat32 encodes samples as little-endian float32 and enqueues them.
// If they do not fit, everything still unread is discarded and the new
// samples are written into the emptied ring: a microphone capture thread
// must never block on a slow consumer.
func (c *captureIngest) writeFloat32(samples []float32) {
	if len(samples) == 0 {
		return
	}
	raw := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}
	if _, err := c.buf.Write(raw); err != nil {
		c.buf.Reset()
		_, _ = c.buf.Write(raw)
	}
}

// drainFloat32 reads and decodes everything currently queued.
func (c *captureIngest) drainFloat32() []float32 {
	n := c.buf.Length()
	if n == 0 {
		return nil
	}
	n -= n % 4
	if n == 0 {
		return nil
	}
	raw := make([]byte, n)
	got, _ := c.buf.Read(raw)
	raw = raw[:got-got%4]
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return out
}
