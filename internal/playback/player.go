package playback

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/syncplayer/internal/audiobackend"
	"github.com/tphakala/syncplayer/internal/audioformat"
	"github.com/tphakala/syncplayer/internal/clockmap"
	"github.com/tphakala/syncplayer/internal/drift"
	syncerrors "github.com/tphakala/syncplayer/internal/errors"
)

// earlyStartSuspectThresholdUS is the canonical "clock-sync fallback in
// use" heuristic threshold; some source variants used an implicit value,
// this is the one this engine standardizes on.
const earlyStartSuspectThresholdUS = 700_000

// scheduledStartChurnGuardUS suppresses re-computing scheduled_start on
// every WaitingForStart submit unless it moved by more than this much.
const scheduledStartChurnGuardUS = 5_000

// TimingMetrics is the observation-only snapshot exposed to callers.
type TimingMetrics struct {
	PlaybackPositionUS int64
	BufferedAudioUS    int64
	DACSamplesRecorded int64
}

// Player is the playback core: event-thread ingress plus the realtime
// audio Callback, bound together by the fields below. See doc.go for the
// cross-thread ownership discipline.
type Player struct {
	logger *slog.Logger
	sync   audiobackend.TimeSync

	// startMonotonic is the origin for this process's host-monotonic
	// microsecond domain: nowMonotonicUS() reports elapsed time since
	// this instant, which is all a monotonic clock needs to guarantee.
	startMonotonic time.Time

	// formatMu guards format, written rarely from the event thread and
	// read once per callback. Volume and mute are atomics of their own.
	formatMu sync.RWMutex
	format   audioformat.Format

	volume atomic.Int32 // 0-100
	muted  atomic.Bool

	queue *chunkQueue

	calRing   *clockmap.Ring
	corrector *drift.Corrector

	state atomic.Int32 // PlaybackState

	// event-thread-only ingress bookkeeping
	haveFirstSourceTS bool
	firstSourceTS     int64
	expectedNextTS    int64

	// earlyStartSuspect and everReanchored are written from the event
	// thread (onFirstSubmit, updateDriftCorrection) but read from the
	// audio thread's start-gating step (§4.2 step 3), so both are atomic
	// despite being booleans rather than the wider per-field mutex that
	// would otherwise suit event-thread-only state.
	earlyStartSuspect atomic.Bool
	everReanchored    atomic.Bool

	scheduledStartMonotonicUS atomic.Int64
	scheduledStartDACUS       atomic.Int64
	scheduledStartDACKnown    atomic.Bool

	clearRequested atomic.Bool

	sourceReadCursorUS atomic.Int64
	playbackPositionUS atomic.Int64

	// written by the event thread after each drift-corrector update,
	// snapshotted into locals at the top of each callback
	scheduleInsertEveryN atomic.Int64
	scheduleDropEveryN   atomic.Int64

	// audio-thread-only, except started, which only the event thread
	// (Submit, startStream, resetState) reads and writes
	cursor          sourceCursor
	countdownInsert int64
	countdownDrop   int64
	lastFrame       []byte
	started         bool

	backend audiobackend.Backend

	callbackCount  atomic.Int64
	callbackTimeUS atomic.Int64

	metrics *Metrics
}

// New constructs a Player bound to the given time-sync collaborator.
// SetFormat must be called before Submit or Callback does anything useful.
func New(logger *slog.Logger, timeSync audiobackend.TimeSync) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Player{
		logger:         logger,
		sync:           timeSync,
		queue:          &chunkQueue{},
		startMonotonic: time.Now(),
	}
	p.volume.Store(100)
	p.state.Store(int32(Initializing))
	return p
}

// SetMetrics attaches a prometheus-backed metrics sink. Optional.
func (p *Player) SetMetrics(m *Metrics) {
	p.metrics = m
}

// SetBackend attaches the audio backend whose stream Submit starts and
// Stop stops.
func (p *Player) SetBackend(b audiobackend.Backend) {
	p.backend = b
}

// SetFormat (re)configures the output format, tearing down any in-flight
// playback state. Safe to call from the event thread only.
func (p *Player) SetFormat(format audioformat.Format) error {
	if err := format.Validate(); err != nil {
		return syncerrors.New(err).Component("playback").Category(syncerrors.CategoryValidation).Build()
	}

	p.formatMu.Lock()
	p.format = format
	p.formatMu.Unlock()

	p.resetState()
	p.cursor = newSourceCursor(format.SampleRate, 0)
	p.corrector = drift.NewCorrector(format.SampleRate)
	p.calRing = clockmap.NewRing()
	return nil
}

// Format returns the currently configured format.
func (p *Player) Format() audioformat.Format {
	p.formatMu.RLock()
	defer p.formatMu.RUnlock()
	return p.format
}

// SetVolume applies volume/mute to the realtime callback path.
func (p *Player) SetVolume(level int, muted bool) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	p.volume.Store(int32(level))
	p.muted.Store(muted)
}

// Clear drops queued audio and resets all ingress/state-machine state
// except format and device, per the external control contract.
func (p *Player) Clear() {
	p.resetState()
}

func (p *Player) resetState() {
	p.queue.clear()
	p.haveFirstSourceTS = false
	p.firstSourceTS = 0
	p.expectedNextTS = 0
	p.earlyStartSuspect.Store(false)
	p.scheduledStartMonotonicUS.Store(0)
	p.scheduledStartDACUS.Store(0)
	p.scheduledStartDACKnown.Store(false)
	p.clearRequested.Store(false)
	p.sourceReadCursorUS.Store(0)
	p.playbackPositionUS.Store(0)
	p.countdownInsert = 0
	p.countdownDrop = 0
	p.lastFrame = nil
	p.started = false
	if p.corrector != nil {
		p.corrector.Reset()
	}
	p.state.Store(int32(Initializing))
}

// Stop halts the audio stream and marks the player closed. Idempotent. It
// calls the backend's Stop, which does not release the device; releasing
// it is left to the backend's own Close.
func (p *Player) Stop() error {
	p.clearRequested.Store(false) // stop() takes precedence over a pending deferred clear
	p.state.Store(int32(Stopped))
	if p.backend == nil {
		return nil
	}
	if err := p.backend.Stop(); err != nil {
		return syncerrors.New(err).Component("playback").Category(syncerrors.CategoryResource).Build()
	}
	return nil
}

// State returns the current PlaybackState.
func (p *Player) State() PlaybackState {
	return PlaybackState(p.state.Load())
}

// TimingMetrics returns an observation-only snapshot.
func (p *Player) TimingMetrics() TimingMetrics {
	format := p.Format()
	return TimingMetrics{
		PlaybackPositionUS: p.playbackPositionUS.Load(),
		BufferedAudioUS:    format.BytesToDuration(int(p.queue.bufferedBytes())),
		DACSamplesRecorded: int64(p.calRingLen()),
	}
}

// nowMonotonicUS returns elapsed microseconds since the player was
// constructed, this process's host-monotonic domain. Both the event
// thread (ingress) and the audio thread (the callback's Step 2) call this
// so the two sides agree on what "monotonic" means.
func (p *Player) nowMonotonicUS() int64 {
	return time.Since(p.startMonotonic).Microseconds()
}

func (p *Player) calRingLen() int {
	if p.calRing == nil {
		return 0
	}
	return p.calRing.Len()
}
