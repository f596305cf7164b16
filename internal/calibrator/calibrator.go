package calibrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tphakala/syncplayer/internal/audiobackend"
)

const (
	defaultWindowSeconds   = 2.0
	defaultRingSeconds     = 10.0
	defaultReportInterval  = 1 * time.Second
	defaultMaxLagMS        = 250.0
	defaultWarmupSeconds   = 30.0
	targetSafetyMarginUS   = 500_000 // the "+0.5s" safety margin in step 1
)

// HistogramData is the UI-facing snapshot exposed by GetHistogramData.
type HistogramData struct {
	Confidence map[int]float64 // millisecond lag bin -> accumulated confidence
	BestOffset int             // ms, the argmax bin
	ElapsedS   float64
	DriftMSPerSecond float64
	HaveDrift  bool
}

// Calibrator is the optional cross-correlation calibrator (spec §4.6): it
// compares reference audio (what the server told this client to play)
// against microphone capture via GCC-PHAT, once per report interval, and
// exposes an accumulated confidence histogram for UI display. Unlike the
// playback core's hard-realtime audio callback, the calibrator's own
// processing runs on a background goroutine — its timing discipline
// mirrors the player's, but its own loop tolerates scheduling jitter.
type Calibrator struct {
	logger *slog.Logger
	sync   audiobackend.TimeSync

	windowSeconds  float64
	reportInterval time.Duration
	maxLagMS       float64

	referenceSampleRate int
	reference           *sampleRing

	ingest    *captureIngest
	captured  *sampleRing
	empirical *empiricalRate

	startMonotonic time.Time

	mu        sync.Mutex
	hist      *histogram
	haveFirst bool

	captureSamplesTotal int64
}

// Option configures a Calibrator at construction.
type Option func(*Calibrator)

// WithWindowSeconds overrides the default 2s correlation window.
func WithWindowSeconds(s float64) Option { return func(c *Calibrator) { c.windowSeconds = s } }

// WithMaxLagMS overrides the default +/-250ms search range.
func WithMaxLagMS(ms float64) Option { return func(c *Calibrator) { c.maxLagMS = ms } }

// New constructs a Calibrator for the given reference (playback) and
// capture (microphone) sample rates.
func New(logger *slog.Logger, timeSync audiobackend.TimeSync, referenceSampleRate, captureSampleRate int, opts ...Option) *Calibrator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Calibrator{
		logger:              logger,
		sync:                timeSync,
		windowSeconds:       defaultWindowSeconds,
		reportInterval:      defaultReportInterval,
		maxLagMS:            defaultMaxLagMS,
		referenceSampleRate: referenceSampleRate,
		reference:           newSampleRing(int(defaultRingSeconds*float64(referenceSampleRate)), 1_000_000.0/float64(referenceSampleRate)),
		ingest:              newCaptureIngest(captureSampleRate * 4 * 2), // ~2s of float32 headroom
		captured:            newSampleRing(int(defaultRingSeconds*float64(captureSampleRate)), 1_000_000.0/float64(captureSampleRate)),
		empirical:           newEmpiricalRate(captureSampleRate, int64(defaultWarmupSeconds*1_000_000)),
		startMonotonic:      time.Now(),
		hist:                newHistogram(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calibrator) nowMonotonicUS() int64 {
	return time.Since(c.startMonotonic).Microseconds()
}

// SubmitReference feeds mono float32 samples of what the server told this
// client to play, at the cursor's source timestamp. Called from the event
// thread, same as Player.Submit — the calibrator derives its reference
// audio from the same ingress, just downmixed to mono float32.
func (c *Calibrator) SubmitReference(sourceTS int64, mono []float32) {
	if len(mono) == 0 {
		return
	}
	periodUS := 1_000_000.0 / float64(c.referenceSampleRate)
	endUS := sourceTS + int64(float64(len(mono)-1)*periodUS)
	c.reference.append(mono, endUS)
}

// CaptureCallback is the microphone's realtime capture entry point,
// symmetrical to Player.Callback: it must not block. It only stages
// samples into the lock-free-ish ingest ring; conversion and windowing
// happen on the calibrator's own goroutine.
func (c *Calibrator) CaptureCallback(mono []float32, timing audiobackend.CaptureTiming) {
	c.ingest.writeFloat32(mono)
}

// Run drains captured audio and produces one GCC-PHAT report per
// reportInterval until ctx is canceled.
func (c *Calibrator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.reportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.drainCapture()
			c.reportOnce()
		}
	}
}

func (c *Calibrator) drainCapture() {
	samples := c.ingest.drainFloat32()
	if len(samples) == 0 {
		return
	}
	now := c.nowMonotonicUS()
	rate := c.empirical.observe(len(samples), now, now)
	c.captured.setPeriod(1_000_000.0 / rate)
	c.captureSamplesTotal += int64(len(samples))
	c.captured.append(samples, now)
}

// reportOnce implements spec §4.6 steps 1-6 for a single report.
func (c *Calibrator) reportOnce() {
	newestCaptureUS, ok := c.captured.newestTimestamp()
	if !ok {
		return
	}
	if !c.haveFirst {
		c.mu.Lock()
		c.haveFirst = true
		c.mu.Unlock()
	}

	targetMonotonicUS := newestCaptureUS - int64(c.windowSeconds/2*1_000_000) - targetSafetyMarginUS
	targetSourceUS := c.sync.ComputeServerTime(targetMonotonicUS)

	windowSamplesRef := int(c.windowSeconds * float64(c.referenceSampleRate))
	refWindow, refOK := c.reference.window(targetSourceUS, windowSamplesRef)
	capWindow, capOK := c.captured.window(targetMonotonicUS, windowSamplesRef)
	if !refOK || !capOK {
		return
	}

	peaks := gccPHAT(refWindow, capWindow, float64(c.referenceSampleRate), c.maxLagMS)

	c.mu.Lock()
	c.hist.accumulate(peaks)
	if bin, _, ok := c.hist.best(); ok {
		c.hist.recordSample(time.Since(c.startMonotonic).Seconds(), float64(bin))
	}
	c.mu.Unlock()
}

// GetHistogramData returns the UI-facing snapshot: accumulated confidence
// per millisecond bin, the current best (argmax) offset, elapsed time, and
// a drift slope once enough history exists.
func (c *Calibrator) GetHistogramData() HistogramData {
	c.mu.Lock()
	defer c.mu.Unlock()

	bin, _, _ := c.hist.best()
	slope, haveSlope := c.hist.slope()
	return HistogramData{
		Confidence:       c.hist.snapshot(),
		BestOffset:       bin,
		ElapsedS:         time.Since(c.startMonotonic).Seconds(),
		DriftMSPerSecond: slope,
		HaveDrift:        haveSlope,
	}
}
