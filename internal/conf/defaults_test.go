package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	s := &Settings{}
	applyDefaults(s)

	assert.Equal(t, 48000, s.Audio.SampleRate)
	assert.Equal(t, 2, s.Audio.Channels)
	assert.Equal(t, 16, s.Audio.BitDepth)
	assert.Equal(t, 100, s.Audio.Volume)
	assert.Equal(t, int64(2000), s.Sync.DeadbandMicros)
	assert.Equal(t, int64(500000), s.Sync.ReanchorMicros)
	assert.InDelta(t, 5.0, s.Sync.ReanchorCooldownSec, 1e-9)
	assert.InDelta(t, 0.04, s.Sync.MaxCorrectionPct, 1e-9)
	assert.Equal(t, ":9110", s.Metrics.Listen)
	assert.Equal(t, "info", s.Log.Level)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	s := &Settings{}
	s.Audio.SampleRate = 44100
	s.Sync.DeadbandMicros = 1000

	applyDefaults(s)

	assert.Equal(t, 44100, s.Audio.SampleRate)
	assert.Equal(t, int64(1000), s.Sync.DeadbandMicros)
}
