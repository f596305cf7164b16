package audioformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameSize(t *testing.T) {
	f := Format{Channels: 2, SampleRate: 48000, BitDepth: 16}
	assert.Equal(t, 4, f.FrameSize())
}

func TestBytesToDurationRoundTrip(t *testing.T) {
	f := Format{Channels: 2, SampleRate: 48000, BitDepth: 16}
	us := f.BytesToDuration(48000 * f.FrameSize())
	assert.Equal(t, int64(1_000_000), us)

	n := f.DurationToBytes(1_000_000)
	assert.Equal(t, 48000*f.FrameSize(), n)
}

func TestBytesToDurationTruncatesPartialFrame(t *testing.T) {
	f := Format{Channels: 2, SampleRate: 48000, BitDepth: 16}
	us := f.BytesToDuration(f.FrameSize() + 1)
	assert.Equal(t, int64(1_000_000)/48000, us)
}

func TestValidateRejectsBadFormat(t *testing.T) {
	assert.Error(t, Format{Channels: 0, SampleRate: 48000, BitDepth: 16}.Validate())
	assert.Error(t, Format{Channels: 2, SampleRate: 0, BitDepth: 16}.Validate())
	assert.Error(t, Format{Channels: 2, SampleRate: 48000, BitDepth: 24}.Validate())
	assert.NoError(t, Format{Channels: 2, SampleRate: 48000, BitDepth: 16}.Validate())
}
