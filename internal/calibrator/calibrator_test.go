package calibrator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityTimeSync models a perfectly synchronized client: source time and
// host-monotonic time are the same timeline, so tests can reason about
// timestamps directly instead of through an offset.
type identityTimeSync struct{}

func (identityTimeSync) ComputeClientTime(sourceUS int64) int64   { return sourceUS }
func (identityTimeSync) ComputeServerTime(monotonicUS int64) int64 { return monotonicUS }

func TestCalibratorReportOnceFindsKnownShift(t *testing.T) {
	const n = 800
	const shift = 15
	const sampleRate = 1000

	c := New(nil, identityTimeSync{}, sampleRate, sampleRate, WithWindowSeconds(0.1), WithMaxLagMS(100))

	reference := broadbandSignal(n)
	captured := make([]float32, n)
	for i := shift; i < n; i++ {
		captured[i] = reference[i-shift]
	}

	endUS := int64(n-1) * 1000 // 1000us period at 1kHz
	c.reference.append(reference, endUS)
	c.captured.append(captured, endUS)

	c.reportOnce()

	data := c.GetHistogramData()
	require.NotEmpty(t, data.Confidence, "a report with two overlapping, aligned windows should find a peak")
	assert.InDelta(t, float64(shift), float64(data.BestOffset), 1.0)
}

func TestCalibratorReportOnceNoopsWithoutEnoughHistory(t *testing.T) {
	c := New(nil, identityTimeSync{}, 1000, 1000, WithWindowSeconds(0.1))

	// Only a handful of samples: nowhere near the safety-margin lookback
	// reportOnce needs, so it must return without panicking or recording.
	c.reference.append(make([]float32, 10), 9_000)
	c.captured.append(make([]float32, 10), 9_000)

	c.reportOnce()

	data := c.GetHistogramData()
	assert.Empty(t, data.Confidence)
	assert.False(t, data.HaveDrift)
}

func TestCalibratorGetHistogramDataBeforeAnyReport(t *testing.T) {
	c := New(nil, identityTimeSync{}, 1000, 1000)
	data := c.GetHistogramData()
	assert.Empty(t, data.Confidence)
	assert.False(t, data.HaveDrift)
	assert.GreaterOrEqual(t, data.ElapsedS, 0.0)
}

func TestCalibratorDrainCaptureAppliesEmpiricalRateDuringWarmup(t *testing.T) {
	c := New(nil, identityTimeSync{}, 1000, 1000)

	c.ingest.writeFloat32(make([]float32, 100))
	c.drainCapture()

	ts, ok := c.captured.newestTimestamp()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, ts, int64(0))
	// Still inside the warmup window, so the capture ring keeps the
	// nominal period rather than an unseeded empirical estimate.
	assert.InDelta(t, 1000.0, c.captured.periodUS, 1e-9)
}

func TestCalibratorSubmitReferenceComputesEndTimestamp(t *testing.T) {
	c := New(nil, identityTimeSync{}, 1000, 1000)

	c.SubmitReference(5_000, make([]float32, 10))

	ts, ok := c.reference.newestTimestamp()
	require.True(t, ok)
	assert.Equal(t, int64(5_000+9*1000), ts)
}

func TestBroadbandSignalHasSubstantialAmplitude(t *testing.T) {
	s := broadbandSignal(50)
	var maxAbs float64
	for _, v := range s {
		if math.Abs(float64(v)) > maxAbs {
			maxAbs = math.Abs(float64(v))
		}
	}
	assert.Greater(t, maxAbs, 0.5)
}
