package playback

// sourceCursor tracks a microsecond position that advances by exactly
// 1e6/sampleRate µs per frame, carrying the fractional remainder forward
// so repeated advances never accumulate rounding drift.
type sourceCursor struct {
	sampleRate int
	us         int64
	remainder  int64 // numerator of the pending fractional microsecond, denominator sampleRate
}

func newSourceCursor(sampleRate int, startUS int64) sourceCursor {
	return sourceCursor{sampleRate: sampleRate, us: startUS}
}

// advance moves the cursor forward by frames worth of audio and returns
// the new position.
func (c *sourceCursor) advance(frames int64) int64 {
	if frames == 0 || c.sampleRate == 0 {
		return c.us
	}
	total := 1_000_000*frames + c.remainder
	c.us += total / int64(c.sampleRate)
	c.remainder = total % int64(c.sampleRate)
	return c.us
}

func (c *sourceCursor) set(us int64) {
	c.us = us
	c.remainder = 0
}

func (c *sourceCursor) position() int64 {
	return c.us
}
