package playback

import (
	"encoding/binary"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/syncplayer/internal/audiobackend"
	"github.com/tphakala/syncplayer/internal/audioformat"
)

// identityTimeSync is a TimeSync with a fixed, possibly zero, monotonic
// offset: ComputeClientTime and ComputeServerTime are exact inverses.
type identityTimeSync struct{ offsetUS int64 }

func (s identityTimeSync) ComputeClientTime(sourceUS int64) int64    { return sourceUS + s.offsetUS }
func (s identityTimeSync) ComputeServerTime(monotonicUS int64) int64 { return monotonicUS - s.offsetUS }

func newTestPlayer(t *testing.T, sampleRate int) *Player {
	t.Helper()
	p := New(slog.Default(), identityTimeSync{})
	require.NoError(t, p.SetFormat(audioformat.Format{Channels: 1, SampleRate: sampleRate, BitDepth: 16}))
	return p
}

func frame16(v int16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(v))
	return buf
}

func sample16(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b))
}

func TestCallbackFastPathCopiesPayloadAndAdvancesCursor(t *testing.T) {
	p := newTestPlayer(t, 10)

	var payload []byte
	for _, v := range []int16{1, 2, 3, 4} {
		payload = append(payload, frame16(v)...)
	}
	require.NoError(t, p.Submit(0, payload))
	p.state.Store(int32(Playing)) // bypass gating: isolate step 4 behavior

	out := make([]byte, len(payload))
	p.Callback(out, 4, audiobackend.Timing{OutputBufferDACTimeSeconds: 1.0})

	assert.Equal(t, payload, out)
	// 4 frames at sampleRate=10 -> 400,000us, exactly, no remainder.
	assert.Equal(t, int64(400_000), p.sourceReadCursorUS.Load())
}

func TestCallbackFastPathPadsSilenceOnUnderrun(t *testing.T) {
	p := newTestPlayer(t, 10)
	require.NoError(t, p.Submit(0, append(frame16(5), frame16(6)...)))
	p.state.Store(int32(Playing))

	out := make([]byte, 4*2)
	p.Callback(out, 4, audiobackend.Timing{OutputBufferDACTimeSeconds: 1.0})

	assert.Equal(t, int16(5), sample16(out[0:2]))
	assert.Equal(t, int16(6), sample16(out[2:4]))
	assert.Equal(t, int16(0), sample16(out[4:6]))
	assert.Equal(t, int16(0), sample16(out[6:8]))
	// cursor only advances for the 2 frames actually consumed.
	assert.Equal(t, int64(200_000), p.sourceReadCursorUS.Load())
}

func TestCallbackHoldsSilenceUntilScheduledStart(t *testing.T) {
	p := newTestPlayer(t, 10)
	// 10s in the future relative to "now" (microseconds since construction,
	// effectively ~0): the start gate must not let any audio through yet.
	require.NoError(t, p.Submit(10_000_000, append(frame16(9), frame16(9)...)))
	require.Equal(t, WaitingForStart, p.State())

	out := make([]byte, 5*2)
	for i := range out {
		out[i] = 0xFF // poison: a bug that skips the fill would leave this
	}
	p.Callback(out, 5, audiobackend.Timing{OutputBufferDACTimeSeconds: 0})

	assert.Equal(t, make([]byte, 10), out)
	assert.Equal(t, WaitingForStart, p.State())
}

func TestCallbackDropCadenceArithmetic(t *testing.T) {
	p := newTestPlayer(t, 5) // 200,000us per frame, divides 1e6 evenly
	var payload []byte
	for _, v := range []int16{10, 20, 30, 40, 50, 60} {
		payload = append(payload, frame16(v)...)
	}
	require.NoError(t, p.Submit(0, payload))
	p.state.Store(int32(Playing))
	p.scheduleDropEveryN.Store(4)

	out := make([]byte, 4*2)
	p.Callback(out, 4, audiobackend.Timing{OutputBufferDACTimeSeconds: 1.0})

	// frames 0-2 pass through untouched; frame 3 is the drop event: it
	// consumes two input frames (40, 50) and emits a duplicate of the
	// last real output (30) instead of either of them.
	assert.Equal(t, int16(10), sample16(out[0:2]))
	assert.Equal(t, int16(20), sample16(out[2:4]))
	assert.Equal(t, int16(30), sample16(out[4:6]))
	assert.Equal(t, int16(30), sample16(out[6:8]))

	// cursor advances k+1=5 input-frame-equivalents over k=4 output frames.
	assert.Equal(t, int64(5*200_000), p.sourceReadCursorUS.Load())

	// the next normal read should be frame value 60: 40 and 50 were
	// consumed by the drop event.
	out2 := make([]byte, 2)
	p.scheduleDropEveryN.Store(0)
	p.Callback(out2, 1, audiobackend.Timing{OutputBufferDACTimeSeconds: 2.0})
	assert.Equal(t, int16(60), sample16(out2))
}

func TestCallbackInsertCadenceArithmetic(t *testing.T) {
	p := newTestPlayer(t, 5)
	var payload []byte
	for _, v := range []int16{10, 20, 30, 40, 50, 60} {
		payload = append(payload, frame16(v)...)
	}
	require.NoError(t, p.Submit(0, payload))
	p.state.Store(int32(Playing))
	p.scheduleInsertEveryN.Store(4)

	out := make([]byte, 4*2)
	p.Callback(out, 4, audiobackend.Timing{OutputBufferDACTimeSeconds: 1.0})

	assert.Equal(t, int16(10), sample16(out[0:2]))
	assert.Equal(t, int16(20), sample16(out[2:4]))
	assert.Equal(t, int16(30), sample16(out[4:6]))
	assert.Equal(t, int16(30), sample16(out[6:8])) // duplicated, no input consumed

	// cursor advances k-1=3 input frames over k=4 output frames.
	assert.Equal(t, int64(3*200_000), p.sourceReadCursorUS.Load())

	// the next normal read should be frame value 40: nothing was consumed
	// by the insert event.
	out2 := make([]byte, 2)
	p.scheduleInsertEveryN.Store(0)
	p.Callback(out2, 1, audiobackend.Timing{OutputBufferDACTimeSeconds: 2.0})
	assert.Equal(t, int16(40), sample16(out2))
}

func TestCallbackVolumeCurve(t *testing.T) {
	for _, tc := range []struct {
		name   string
		volume int
		muted  bool
		want   float64 // expected scale factor applied to the raw sample
	}{
		{"muted", 100, true, 0},
		{"zero", 0, false, 0},
		{"half", 50, false, 0.3535534},
		{"full", 100, false, 1.0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPlayer(t, 10)
			require.NoError(t, p.Submit(0, append(frame16(1000), frame16(1000)...)))
			p.state.Store(int32(Playing))
			p.SetVolume(tc.volume, tc.muted)

			out := make([]byte, 4)
			p.Callback(out, 2, audiobackend.Timing{OutputBufferDACTimeSeconds: 1.0})

			want := int16(1000 * tc.want)
			assert.InDelta(t, int(want), int(sample16(out[0:2])), 1)
		})
	}
}

func TestCallbackUnderflowRaisesClearRequested(t *testing.T) {
	p := newTestPlayer(t, 10)
	require.NoError(t, p.Submit(0, append(frame16(1), frame16(2)...)))
	p.state.Store(int32(Playing))

	out := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	p.Callback(out, 2, audiobackend.Timing{Underflow: true})

	assert.Equal(t, make([]byte, 4), out)
	assert.True(t, p.clearRequested.Load())
}
