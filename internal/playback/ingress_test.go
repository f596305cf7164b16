package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/syncplayer/internal/audiobackend"
)

// TestSubmitFillsGapWithSilence covers Testable Property #1: a positive
// gap between one chunk's end and the next chunk's source_ts must surface
// as exactly that many silence frames in the callback's output, with no
// frames lost or reordered around the gap.
func TestSubmitFillsGapWithSilence(t *testing.T) {
	p := newTestPlayer(t, 10) // 100,000us per frame

	var first []byte
	for _, v := range []int16{1, 2} {
		first = append(first, frame16(v)...)
	}
	require.NoError(t, p.Submit(0, first))

	// Gap of 2 frames (200,000us) between the end of the first chunk
	// (expectedNextTS=200,000) and the second chunk's source_ts=400,000.
	var second []byte
	for _, v := range []int16{3, 4} {
		second = append(second, frame16(v)...)
	}
	require.NoError(t, p.Submit(400_000, second))

	p.state.Store(int32(Playing))

	out := make([]byte, 6*2)
	p.Callback(out, 6, audiobackend.Timing{OutputBufferDACTimeSeconds: 1.0})

	assert.Equal(t, int16(1), sample16(out[0:2]))
	assert.Equal(t, int16(2), sample16(out[2:4]))
	assert.Equal(t, int16(0), sample16(out[4:6]), "gap frame must be silence")
	assert.Equal(t, int16(0), sample16(out[6:8]), "gap frame must be silence")
	assert.Equal(t, int16(3), sample16(out[8:10]))
	assert.Equal(t, int16(4), sample16(out[10:12]))
}

// TestSubmitFullOverlapIsANoop covers Testable Property #2: submitting a
// chunk whose source_ts is entirely behind the expected next timestamp,
// by exactly the chunk's own duration, must be a complete no-op on the
// queue rather than appending anything.
func TestSubmitFullOverlapIsANoop(t *testing.T) {
	p := newTestPlayer(t, 10) // 100,000us per frame

	var first []byte
	for _, v := range []int16{1, 2, 3, 4} {
		first = append(first, frame16(v)...)
	}
	require.NoError(t, p.Submit(0, first)) // expectedNextTS becomes 400,000

	var overlapping []byte
	for _, v := range []int16{9, 9, 9, 9} {
		overlapping = append(overlapping, frame16(v)...)
	}
	require.NoError(t, p.Submit(0, overlapping)) // fully behind expectedNextTS

	assert.Equal(t, int64(400_000), p.expectedNextTS, "a fully-overlapping chunk must not move expectedNextTS")
	assert.Equal(t, int64(8), p.queue.bufferedBytes(), "a fully-overlapping chunk must not be enqueued")

	p.state.Store(int32(Playing))

	out := make([]byte, 4*2)
	p.Callback(out, 4, audiobackend.Timing{OutputBufferDACTimeSeconds: 1.0})

	assert.Equal(t, int16(1), sample16(out[0:2]))
	assert.Equal(t, int16(2), sample16(out[2:4]))
	assert.Equal(t, int16(3), sample16(out[4:6]))
	assert.Equal(t, int16(4), sample16(out[6:8]))
}

// TestSubmitPartialOverlapTrimsLeadingEdge covers the overlap branch when
// the incoming payload extends past expectedNextTS: only the already-sent
// leading portion is trimmed, and the rest is enqueued.
func TestSubmitPartialOverlapTrimsLeadingEdge(t *testing.T) {
	p := newTestPlayer(t, 10) // 100,000us per frame

	var first []byte
	for _, v := range []int16{1, 2} {
		first = append(first, frame16(v)...)
	}
	require.NoError(t, p.Submit(0, first)) // expectedNextTS becomes 200,000

	// Retransmission starting 1 frame (100,000us) before expectedNextTS:
	// the first frame (5) is a duplicate of already-scheduled audio and
	// must be trimmed, leaving only the new frame (6).
	var overlapping []byte
	for _, v := range []int16{5, 6} {
		overlapping = append(overlapping, frame16(v)...)
	}
	require.NoError(t, p.Submit(100_000, overlapping))

	p.state.Store(int32(Playing))

	out := make([]byte, 3*2)
	p.Callback(out, 3, audiobackend.Timing{OutputBufferDACTimeSeconds: 1.0})

	assert.Equal(t, int16(1), sample16(out[0:2]))
	assert.Equal(t, int16(2), sample16(out[2:4]))
	assert.Equal(t, int16(6), sample16(out[4:6]))
}
