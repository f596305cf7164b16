package playback

import (
	"fmt"
	"time"

	"github.com/tphakala/syncplayer/internal/audioformat"
	syncerrors "github.com/tphakala/syncplayer/internal/errors"
)

// Submit enqueues audio for playback. See spec §4.1: rejects misaligned
// payloads, reconciles gaps/overlaps against the expected contiguous
// source timeline, establishes the scheduled start on first submit, and
// feeds the drift corrector once playing.
func (p *Player) Submit(sourceTS int64, payload []byte) error {
	format := p.Format()
	frameSize := format.FrameSize()
	if frameSize == 0 {
		return syncerrors.New(fmt.Errorf("format not set")).
			Component("playback").Category(syncerrors.CategoryState).Build()
	}
	// An underflow raised by the callback is acted on here, on the event
	// thread: the deferred clear resets playback state before this chunk is
	// handled. Once Stop has run, a pending clear is skipped.
	if p.State() != Stopped && p.clearRequested.Load() {
		p.resetState()
	}
	if len(payload)%frameSize != 0 {
		p.logger.Warn("dropping misaligned chunk", "len", len(payload), "frame_size", frameSize)
		return nil
	}
	if len(payload) == 0 {
		return nil
	}

	if !p.haveFirstSourceTS {
		p.onFirstSubmit(sourceTS)
	} else if p.State() == WaitingForStart {
		p.reevaluateScheduledStart()
	}

	p.reconcileAndEnqueue(sourceTS, payload, format)
	p.metrics.observeBuffered(format.BytesToDuration(int(p.queue.bufferedBytes())))

	if p.State() == Playing {
		p.updateDriftCorrection()
	}

	if !p.started && p.queue.len() > 0 {
		p.startStream()
	}

	return nil
}

func (p *Player) onFirstSubmit(sourceTS int64) {
	p.haveFirstSourceTS = true
	p.firstSourceTS = sourceTS
	p.expectedNextTS = sourceTS

	scheduledMonotonic := p.sync.ComputeClientTime(sourceTS)
	p.scheduledStartMonotonicUS.Store(scheduledMonotonic)

	if dac, ok := p.estimateDACForMonotonic(scheduledMonotonic); ok {
		p.scheduledStartDACUS.Store(dac)
		p.scheduledStartDACKnown.Store(true)
	}

	delta := scheduledMonotonic - p.nowMonotonicUS()
	if delta < 0 {
		delta = -delta
	}
	p.earlyStartSuspect.Store(delta < earlyStartSuspectThresholdUS)

	p.state.Store(int32(WaitingForStart))
}

func (p *Player) reevaluateScheduledStart() {
	newScheduled := p.sync.ComputeClientTime(p.firstSourceTS)
	current := p.scheduledStartMonotonicUS.Load()
	diff := newScheduled - current
	if diff < 0 {
		diff = -diff
	}
	if diff > scheduledStartChurnGuardUS {
		p.scheduledStartMonotonicUS.Store(newScheduled)
		if dac, ok := p.estimateDACForMonotonic(newScheduled); ok {
			p.scheduledStartDACUS.Store(dac)
			p.scheduledStartDACKnown.Store(true)
		}
	}
}

func (p *Player) estimateDACForMonotonic(monotonicUS int64) (int64, bool) {
	if p.calRing == nil || p.calRing.Len() < 2 {
		return 0, false
	}
	dac := p.calRing.EstimateDACForMonotonic(monotonicUS)
	if dac == 0 {
		return 0, false
	}
	return dac, true
}

// reconcileAndEnqueue enforces the contiguity invariant: the source_ts of
// each enqueued chunk must equal expectedNextTS. Gaps are filled with
// synthetic silence; overlaps trim the leading edge of the incoming
// payload.
func (p *Player) reconcileAndEnqueue(sourceTS int64, payload []byte, format audioformat.Format) {
	switch {
	case sourceTS == p.expectedNextTS:
		p.enqueue(sourceTS, payload)

	case sourceTS > p.expectedNextTS:
		gapUS := sourceTS - p.expectedNextTS
		silenceLen := format.DurationToBytes(gapUS)
		if silenceLen > 0 {
			p.enqueue(p.expectedNextTS, make([]byte, silenceLen))
		}
		p.enqueue(sourceTS, payload)

	default: // sourceTS < expectedNextTS: overlap
		overlapUS := p.expectedNextTS - sourceTS
		trimBytes := format.DurationToBytes(overlapUS)
		if trimBytes >= len(payload) {
			return // entire payload consumed by trimming: no-op on the queue
		}
		p.enqueue(p.expectedNextTS, payload[trimBytes:])
	}
}

func (p *Player) enqueue(sourceTS int64, data []byte) {
	p.queue.push(queuedChunk{sourceTS: sourceTS, data: data})
	format := p.Format()
	p.expectedNextTS = sourceTS + format.BytesToDuration(len(data))
}

// updateDriftCorrection feeds the raw sync error to the corrector and
// either publishes a new correction Schedule for the audio thread, or, on
// re-anchor, clears all ingress/playback state and returns to
// Initializing.
func (p *Player) updateDriftCorrection() {
	raw := p.playbackPositionUS.Load() - p.sourceReadCursorUS.Load()
	p.metrics.observeSyncError(raw)
	sched := p.corrector.Update(raw, time.Now(), p.State())

	if p.corrector.Reanchored() {
		p.logger.Warn("re-anchoring: gross sync error", "raw_error_us", raw)
		p.everReanchored.Store(true)
		if p.metrics != nil {
			p.metrics.RecordReanchor()
		}
		p.resetState()
		return
	}

	p.scheduleInsertEveryN.Store(sched.InsertEveryN)
	p.scheduleDropEveryN.Store(sched.DropEveryN)
}

// startStream starts the audio backend on the first submit that leaves the
// queue non-empty; subsequent starts are driven entirely by the callback.
func (p *Player) startStream() {
	p.started = true
	if p.backend == nil {
		return
	}
	if err := p.backend.Start(); err != nil {
		p.logger.Error("failed to start audio stream", "error", err)
	}
}
