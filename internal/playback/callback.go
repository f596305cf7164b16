package playback

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/tphakala/syncplayer/internal/audiobackend"
	"github.com/tphakala/syncplayer/internal/audioformat"
)

// correctionEvent identifies which micro-correction, if any, fires at the
// frame currently being emitted.
type correctionEvent int

const (
	correctionNone correctionEvent = iota
	correctionDrop
	correctionInsert
)

// Callback is invoked by the audio backend once per buffer, on the
// realtime audio thread. It implements §4.2 steps 1-6: status handling,
// DAC/monotonic calibration, start gating, sample emission (fast or
// drift-corrected slow path), volume, and accounting. It must fill out
// completely before returning and must never block.
func (p *Player) Callback(out []byte, frames int, timing audiobackend.Timing) {
	callbackStart := time.Now()
	defer func() {
		if r := recover(); r != nil {
			// Step 6 / error handling: never let a panic escape onto the
			// realtime thread. Silence the whole buffer and forget the
			// saved last frame so it is not duplicated next callback.
			// The queue's partially drained front chunk is left as is.
			p.logger.Error("recovered panic in audio callback", "panic", r)
			zeroBytes(out)
			p.lastFrame = nil
		}
		p.callbackCount.Add(1)
		elapsed := time.Since(callbackStart)
		p.callbackTimeUS.Add(elapsed.Microseconds())
		p.metrics.RecordCallback(elapsed)
	}()

	format := p.Format()
	frameSize := format.FrameSize()
	if frameSize == 0 || frames <= 0 {
		zeroBytes(out)
		return
	}

	// Step 1: status handling.
	if timing.Underflow {
		p.clearRequested.Store(true)
		p.metrics.RecordUnderflow()
		zeroBytes(out)
		return
	}

	// Step 2: calibration.
	dacTimeUS := roundUS(timing.OutputBufferDACTimeSeconds * 1e6)
	monotonicUS := p.nowMonotonicUS()
	if p.calRing != nil {
		p.calRing.Add(dacTimeUS, monotonicUS)

		if monoAtDAC := p.calRing.EstimateMonotonicForDAC(dacTimeUS); monoAtDAC != 0 {
			pos := p.sync.ComputeServerTime(monoAtDAC)
			p.playbackPositionUS.Store(pos)
			p.metrics.observePosition(pos)
		}

		if !p.scheduledStartDACKnown.Load() {
			if sm := p.scheduledStartMonotonicUS.Load(); sm != 0 {
				if dac := p.calRing.EstimateDACForMonotonic(sm); dac != 0 {
					p.scheduledStartDACUS.Store(dac)
					p.scheduledStartDACKnown.Store(true)
				}
			}
		}
	}

	needed := frames * frameSize
	if len(out) < needed {
		needed = len(out)
		frames = needed / frameSize
	}

	written := 0 // frames already placed into out
	for written < frames {
		switch p.State() {
		case WaitingForStart:
			// runStartGate always either writes silence frames (> 0,
			// since framesAvail here is always >= 1) or writes none and
			// transitions to Playing, so this can't spin forever.
			written += p.runStartGate(out[written*frameSize:frames*frameSize], frames-written, frameSize, dacTimeUS, monotonicUS)

		case Playing:
			written += p.emitPlaying(out[written*frameSize:frames*frameSize], frames-written, frameSize)

		default:
			// Reanchoring/Initializing/Stopped: nothing queued is ours
			// to play yet; pad the remainder with silence.
			zeroBytes(out[written*frameSize : frames*frameSize])
			written = frames
		}
	}

	// Step 5: volume.
	p.applyVolume(out[:frames*frameSize], format)
}

// runStartGate implements §4.2 step 3 for up to framesAvail output frames.
// It returns the number of (silence) frames it wrote into out. A state
// transition to Playing may happen inside this call; the caller re-enters
// its dispatch loop afterward so the remaining budget is emitted via
// emitPlaying in the same callback.
func (p *Player) runStartGate(out []byte, framesAvail, frameSize int, dacTimeUS, monotonicUS int64) int {
	format := p.Format()
	sampleRate := int64(format.SampleRate)

	var gateDAC bool
	var scheduled, current int64
	if p.scheduledStartDACKnown.Load() {
		gateDAC = true
		scheduled = p.scheduledStartDACUS.Load()
		current = dacTimeUS
	} else {
		scheduled = p.scheduledStartMonotonicUS.Load()
		current = monotonicUS
	}

	delta := scheduled - current

	if delta > 0 {
		neededFrames := ceilDiv(delta*sampleRate, 1_000_000)
		n := neededFrames
		if n > int64(framesAvail) {
			n = int64(framesAvail)
		}
		zeroBytes(out[:int(n)*frameSize])
		if n == neededFrames {
			p.state.Store(int32(Playing))
		}
		return int(n)
	}

	// delta <= 0: the scheduled instant has arrived or passed.
	if gateDAC && delta < 0 && (!p.earlyStartSuspect.Load() || p.everReanchored.Load()) {
		skipFrames := ceilDiv(-delta*sampleRate, 1_000_000)
		var skipped int64
		for ; skipped < skipFrames; skipped++ {
			if !p.queue.dropFrame(frameSize) {
				break
			}
		}
		p.cursor.advance(skipped)
		p.sourceReadCursorUS.Store(p.cursor.position())
	}
	p.state.Store(int32(Playing))
	return 0
}

// emitPlaying implements §4.2 step 4: the fast path when no correction
// cadence is active, otherwise the slow path that interleaves drop/insert
// events at their scheduled boundaries. Returns frames written.
func (p *Player) emitPlaying(out []byte, framesAvail, frameSize int) int {
	insertEveryN := p.scheduleInsertEveryN.Load()
	dropEveryN := p.scheduleDropEveryN.Load()

	if insertEveryN == 0 && dropEveryN == 0 {
		return p.emitFastPath(out, framesAvail, frameSize)
	}
	return p.emitSlowPath(out, framesAvail, frameSize, insertEveryN, dropEveryN)
}

func (p *Player) emitFastPath(out []byte, framesAvail, frameSize int) int {
	written := 0
	for written < framesAvail {
		dst := out[written*frameSize : (written+1)*frameSize]
		if !p.queue.readFrame(dst, frameSize) {
			break // queue underrun: pad the remainder with silence below
		}
		p.saveLastFrame(dst)
		p.cursor.advance(1)
		written++
	}
	if written < framesAvail {
		zeroBytes(out[written*frameSize : framesAvail*frameSize])
	}
	p.sourceReadCursorUS.Store(p.cursor.position())
	return framesAvail
}

func (p *Player) emitSlowPath(out []byte, framesAvail, frameSize int, insertEveryN, dropEveryN int64) int {
	dropped := 0
	inserted := 0
	for written := 0; written < framesAvail; written++ {
		dst := out[written*frameSize : (written+1)*frameSize]

		event := correctionNone
		if dropEveryN > 0 {
			if p.countdownDrop <= 0 {
				p.countdownDrop = dropEveryN
			}
			p.countdownDrop--
			if p.countdownDrop <= 0 {
				event = correctionDrop
			}
		} else if insertEveryN > 0 {
			if p.countdownInsert <= 0 {
				p.countdownInsert = insertEveryN
			}
			p.countdownInsert--
			if p.countdownInsert <= 0 {
				event = correctionInsert
			}
		}

		switch event {
		case correctionDrop:
			// Two input frames consumed (one "normal", one "discarded"),
			// the output is the duplicated last-emitted frame: the
			// source cursor advances 2 for this 1 output frame, which is
			// how the read cursor catches up to a playback position
			// that is running ahead of it.
			var consumed int64
			if p.queue.dropFrame(frameSize) {
				consumed++
			}
			if p.queue.dropFrame(frameSize) {
				consumed++
			}
			p.cursor.advance(consumed)
			p.writeLastFrame(dst)
			dropped++

		case correctionInsert:
			// No input consumed; the cursor holds position while we
			// stretch output with a duplicated frame.
			p.writeLastFrame(dst)
			inserted++

		default:
			if p.queue.readFrame(dst, frameSize) {
				p.saveLastFrame(dst)
				p.cursor.advance(1)
			} else {
				zeroBytes(dst)
			}
		}
	}
	p.sourceReadCursorUS.Store(p.cursor.position())
	p.metrics.RecordDroppedFrames(dropped)
	p.metrics.RecordInsertedFrames(inserted)
	return framesAvail
}

func (p *Player) saveLastFrame(frame []byte) {
	if cap(p.lastFrame) < len(frame) {
		p.lastFrame = make([]byte, len(frame))
	}
	p.lastFrame = p.lastFrame[:len(frame)]
	copy(p.lastFrame, frame)
}

func (p *Player) writeLastFrame(dst []byte) {
	if p.lastFrame == nil {
		zeroBytes(dst)
		return
	}
	copy(dst, p.lastFrame)
}

// applyVolume implements §4.2 step 5. Muted or zero volume zeroes the
// buffer; full volume is a no-op; anything between is scaled by
// (volume/100)^1.5, saturating into the sample's signed range.
func (p *Player) applyVolume(out []byte, format audioformat.Format) {
	volume := p.volume.Load()
	muted := p.muted.Load()

	if muted || volume == 0 {
		zeroBytes(out)
		return
	}
	if volume >= 100 {
		return
	}

	gain := math.Pow(float64(volume)/100.0, 1.5)
	if format.BitDepth == 32 {
		scaleSamples32(out, gain)
		return
	}
	scaleSamples16(out, gain)
}

func scaleSamples32(out []byte, gain float64) {
	for i := 0; i+3 < len(out); i += 4 {
		s := int32(binary.LittleEndian.Uint32(out[i : i+4]))
		scaled := float64(s) * gain
		binary.LittleEndian.PutUint32(out[i:i+4], uint32(saturateInt32(scaled)))
	}
}

func saturateInt32(v float64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

func scaleSamples16(out []byte, gain float64) {
	for i := 0; i+1 < len(out); i += 2 {
		s := int16(binary.LittleEndian.Uint16(out[i : i+2]))
		scaled := float64(s) * gain
		out[i], out[i+1] = int16Bytes(saturateInt16(scaled))
	}
}

func saturateInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func int16Bytes(v int16) (byte, byte) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	return buf[0], buf[1]
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func ceilDiv(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	if num <= 0 {
		return 0
	}
	return (num + den - 1) / den
}

func roundUS(v float64) int64 {
	if v >= 0 {
		return int64(v + 0.5)
	}
	return int64(v - 0.5)
}
