package calibrator

import (
	"math"
	"sync"
)

// sampleRing is a fixed-capacity circular buffer of mono float32 samples
// with one timestamp anchor: newestUS, the timestamp of the most recently
// appended sample. Any older sample's timestamp is derived from newestUS
// and the ring's nominal or empirically-measured sample period — this is
// equivalent to (and simpler than) tracking the logical-position-0
// timestamp and advancing it on wrap, since every sample in between is
// assumed evenly spaced.
//
// Indexed, overwrite-in-place storage rather than a streaming
// io.Reader/Writer ring buffer: the calibrator needs random-access
// "give me the window around timestamp T" queries, not FIFO drain, so a
// plain slice is the right tool here. See capture_ingest.go for the
// device-thread-to-goroutine handoff, which *is* a good fit for this
// corpus's smallnest/ringbuffer dependency.
type sampleRing struct {
	mu       sync.Mutex
	data     []float32
	write    int // next write index
	filled   int // valid sample count, saturates at len(data)
	newestUS int64
	haveAny  bool

	// periodUS is this ring's current estimate of microseconds per
	// sample. The reference ring holds this fixed at 1e6/sampleRate; the
	// capture ring's is re-estimated from wall-clock drift (see
	// empirical.go) to compensate for the input device's own clock.
	periodUS float64
}

func newSampleRing(capacitySamples int, periodUS float64) *sampleRing {
	return &sampleRing{
		data:     make([]float32, capacitySamples),
		periodUS: periodUS,
	}
}

// setPeriod updates the assumed microseconds-per-sample used to place
// historical samples relative to newestUS.
func (r *sampleRing) setPeriod(periodUS float64) {
	r.mu.Lock()
	r.periodUS = periodUS
	r.mu.Unlock()
}

// append adds samples whose last element lands at timestamp endUS.
func (r *sampleRing) append(samples []float32, endUS int64) {
	if len(samples) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.data)
	if len(samples) > capacity {
		samples = samples[len(samples)-capacity:]
	}
	for _, s := range samples {
		r.data[r.write] = s
		r.write = (r.write + 1) % capacity
		if r.filled < capacity {
			r.filled++
		}
	}
	r.newestUS = endUS
	r.haveAny = true
}

// window extracts n samples centered on targetUS, oldest-first: n/2
// samples before the target sample, the target sample itself at index
// n/2, and the remaining n-n/2-1 after it. Returns false if the ring does
// not yet hold enough history on either side of targetUS.
func (r *sampleRing) window(targetUS int64, n int) ([]float32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.haveAny || r.periodUS <= 0 || n <= 0 {
		return nil, false
	}
	if r.filled < n {
		return nil, false
	}

	// offsetFromNewest counts samples back from the newest one (0 == newest).
	// The target sample sits at position `half` within the returned,
	// oldest-first window, so its offset is the largest (oldest) one in the
	// window plus `half` minus the in-window index.
	half := n / 2
	targetOffsetFromNewest := int64(math.Round(float64(r.newestUS-targetUS) / r.periodUS))
	maxOffsetFromNewest := targetOffsetFromNewest + int64(half)        // i == 0, oldest
	minOffsetFromNewest := maxOffsetFromNewest - int64(n) + 1          // i == n-1, newest edge

	if maxOffsetFromNewest >= int64(r.filled) || minOffsetFromNewest < 0 {
		return nil, false
	}

	capacity := len(r.data)
	// r.write is the index one past the newest sample.
	newestIdx := (r.write - 1 + capacity) % capacity

	out := make([]float32, n)
	for i := 0; i < n; i++ {
		offsetFromNewest := maxOffsetFromNewest - int64(i)
		idx := ((newestIdx-int(offsetFromNewest))%capacity + capacity) % capacity
		out[i] = r.data[idx]
	}
	return out, true
}

// newestTimestamp reports the timestamp of the most recently appended
// sample, and whether any sample has landed yet.
func (r *sampleRing) newestTimestamp() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newestUS, r.haveAny
}
