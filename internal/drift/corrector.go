package drift

import "time"

// Schedule is a pair of correction cadences: emit a drop every DropEveryN
// output frames, or an insert every InsertEveryN output frames. At most one
// is nonzero at a time.
type Schedule struct {
	InsertEveryN int64
	DropEveryN   int64
}

// Zero reports whether both cadences are zero (no correction in effect).
func (s Schedule) Zero() bool {
	return s.InsertEveryN == 0 && s.DropEveryN == 0
}

const (
	deadbandUS            = 2_000
	reanchorThresholdUS   = 500_000
	reanchorCooldown      = 5 * time.Second
	targetFixSeconds      = 2.0
	maxCorrectionFraction = 0.04
)

// Corrector converts a Kalman-smoothed sync error into a correction
// Schedule, applying a deadband, a proportional cadence capped to avoid
// audible pitch shift, and re-anchor hysteresis for gross errors.
type Corrector struct {
	sampleRate int
	filter     *KalmanFilter

	lastReanchor     time.Time
	everReanchored   bool
	reanchorRequested bool
}

// NewCorrector returns a Corrector tuned for the given output sample rate.
func NewCorrector(sampleRate int) *Corrector {
	return &Corrector{
		sampleRate: sampleRate,
		filter:     NewKalmanFilter(),
	}
}

// Update feeds a new raw sync-error sample (microseconds; positive means
// rendered audio is ahead of the source cursor) and returns the resulting
// correction Schedule. Call Reanchored() immediately after to discover
// whether this update requested a hard re-anchor.
func (c *Corrector) Update(rawErrorUS int64, now time.Time, state PlaybackState) Schedule {
	smoothed := c.filter.Update(float64(rawErrorUS))
	absErr := smoothed
	if absErr < 0 {
		absErr = -absErr
	}

	c.reanchorRequested = false

	switch {
	case absErr <= deadbandUS:
		return Schedule{}

	case absErr > reanchorThresholdUS && state == Playing && c.cooldownElapsed(now):
		c.lastReanchor = now
		c.everReanchored = true
		c.reanchorRequested = true
		c.filter.Reset()
		return Schedule{}

	default:
		correctionsPerSec := absErr * float64(c.sampleRate) / 1_000_000.0 / targetFixSeconds
		maxPerSec := maxCorrectionFraction * float64(c.sampleRate)
		if correctionsPerSec > maxPerSec {
			correctionsPerSec = maxPerSec
		}
		interval := int64(float64(c.sampleRate) / correctionsPerSec)
		if interval < 1 {
			interval = 1
		}
		if smoothed > 0 {
			return Schedule{DropEveryN: interval}
		}
		return Schedule{InsertEveryN: interval}
	}
}

func (c *Corrector) cooldownElapsed(now time.Time) bool {
	if c.lastReanchor.IsZero() {
		return true
	}
	return now.Sub(c.lastReanchor) >= reanchorCooldown
}

// Reanchored reports whether the most recent Update call requested a hard
// re-anchor (the caller must clear its queue and reset to Initializing).
func (c *Corrector) Reanchored() bool {
	return c.reanchorRequested
}

// Reset clears the filter, the pending re-anchor request and the cooldown
// state. When the most recent Update requested a re-anchor, the caller
// carrying out that re-anchor resets through here too; in that case the
// cooldown started by the re-anchor is kept.
func (c *Corrector) Reset() {
	c.filter.Reset()
	if !c.reanchorRequested {
		c.lastReanchor = time.Time{}
	}
	c.reanchorRequested = false
}
