package playback

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a thin prometheus wrapper around the playback core's
// observation points. Constructed against a caller-supplied registry the
// same way the rest of the corpus registers its collectors, so tests can
// hand it a fresh prometheus.NewRegistry() instead of the global default.
type Metrics struct {
	bufferedAudioUS    prometheus.Gauge
	playbackPositionUS prometheus.Gauge
	syncErrorUS        prometheus.Gauge
	framesDroppedTotal prometheus.Counter
	framesInsertedTotal prometheus.Counter
	reanchorsTotal     prometheus.Counter
	underflowsTotal    prometheus.Counter
	callbackSeconds    prometheus.Histogram
}

// NewMetrics registers the playback collectors on registry and returns the
// handle used to record them. Mirrors the corpus's NewXMetrics(registry)
// (*XMetrics, error) constructor shape.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		bufferedAudioUS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncplayer",
			Subsystem: "playback",
			Name:      "buffered_audio_microseconds",
			Help:      "Duration of PCM currently queued ahead of the read cursor.",
		}),
		playbackPositionUS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncplayer",
			Subsystem: "playback",
			Name:      "position_microseconds",
			Help:      "Source-timeline position the DAC is currently presenting.",
		}),
		syncErrorUS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncplayer",
			Subsystem: "drift",
			Name:      "raw_error_microseconds",
			Help:      "Most recent raw (unsmoothed) sync error fed to the corrector.",
		}),
		framesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncplayer",
			Subsystem: "drift",
			Name:      "frames_dropped_total",
			Help:      "Input frames discarded by drop-correction events.",
		}),
		framesInsertedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncplayer",
			Subsystem: "drift",
			Name:      "frames_inserted_total",
			Help:      "Output frames duplicated by insert-correction events.",
		}),
		reanchorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncplayer",
			Subsystem: "drift",
			Name:      "reanchors_total",
			Help:      "Gross sync errors that triggered a full re-anchor.",
		}),
		underflowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncplayer",
			Subsystem: "playback",
			Name:      "underflows_total",
			Help:      "Hardware underflows reported by the audio backend.",
		}),
		callbackSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "syncplayer",
			Subsystem: "playback",
			Name:      "callback_seconds",
			Help:      "Wall time spent inside the realtime audio callback.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	collectors := []prometheus.Collector{
		m.bufferedAudioUS, m.playbackPositionUS, m.syncErrorUS,
		m.framesDroppedTotal, m.framesInsertedTotal, m.reanchorsTotal,
		m.underflowsTotal, m.callbackSeconds,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordCallback(d time.Duration) {
	if m == nil {
		return
	}
	m.callbackSeconds.Observe(d.Seconds())
}

func (m *Metrics) RecordUnderflow() {
	if m == nil {
		return
	}
	m.underflowsTotal.Inc()
}

func (m *Metrics) RecordReanchor() {
	if m == nil {
		return
	}
	m.reanchorsTotal.Inc()
}

func (m *Metrics) RecordDroppedFrames(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.framesDroppedTotal.Add(float64(n))
}

func (m *Metrics) RecordInsertedFrames(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.framesInsertedTotal.Add(float64(n))
}

func (m *Metrics) observeBuffered(us int64) {
	if m == nil {
		return
	}
	m.bufferedAudioUS.Set(float64(us))
}

func (m *Metrics) observePosition(us int64) {
	if m == nil {
		return
	}
	m.playbackPositionUS.Set(float64(us))
}

func (m *Metrics) observeSyncError(us int64) {
	if m == nil {
		return
	}
	m.syncErrorUS.Set(float64(us))
}
