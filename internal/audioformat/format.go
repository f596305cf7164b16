// Package audioformat describes the PCM layout flowing through the
// playback pipeline.
package audioformat

import "fmt"

// Format describes interleaved linear-PCM audio.
type Format struct {
	Channels   int
	SampleRate int
	BitDepth   int // 16 or 32
}

// FrameSize returns the byte size of one sample frame (one sample per
// channel).
func (f Format) FrameSize() int {
	return f.Channels * (f.BitDepth / 8)
}

// BytesToDuration converts a byte count in this format to microseconds of
// audio, rounding down to the start of the frame it falls within.
func (f Format) BytesToDuration(n int) int64 {
	frameSize := f.FrameSize()
	if frameSize == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := int64(n / frameSize)
	return frames * 1_000_000 / int64(f.SampleRate)
}

// DurationToBytes converts a microsecond duration to a byte count in this
// format, rounded down to a whole frame.
func (f Format) DurationToBytes(us int64) int {
	if f.SampleRate == 0 {
		return 0
	}
	frames := us * int64(f.SampleRate) / 1_000_000
	return int(frames) * f.FrameSize()
}

// Validate reports an error for a format with no usable PCM layout.
func (f Format) Validate() error {
	if f.Channels <= 0 {
		return fmt.Errorf("audioformat: invalid channel count %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("audioformat: invalid sample rate %d", f.SampleRate)
	}
	if f.BitDepth != 16 && f.BitDepth != 32 {
		return fmt.Errorf("audioformat: unsupported bit depth %d", f.BitDepth)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dch/%dHz/%dbit", f.Channels, f.SampleRate, f.BitDepth)
}
