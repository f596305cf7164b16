// Package audiobackend defines the capability-set interfaces the playback
// core is driven through, decoupling it from any one audio library.
package audiobackend

import "github.com/tphakala/syncplayer/internal/audioformat"

// Timing carries the backend-reported clocks available at one audio
// callback invocation.
type Timing struct {
	// OutputBufferDACTimeSeconds is when the first frame of this buffer
	// will physically leave the DAC, in backend clock seconds.
	OutputBufferDACTimeSeconds float64
	// Underflow is true when the backend reports it ran out of data
	// before this callback supplied more.
	Underflow bool
}

// Backend is the capability set the playback core needs from an audio
// output device: start the stream, stop it, and release its resources.
// The actual sample callback is registered out of band at construction
// time (each concrete backend wires it to (*playback.Player).Callback).
type Backend interface {
	Start() error
	Stop() error
	Close() error
}

// CaptureTiming carries the backend-reported clock available at one
// microphone capture callback invocation, symmetrical to Timing.
type CaptureTiming struct {
	// InputBufferADCTimeSeconds is when the first frame of this buffer
	// was physically sampled by the ADC, in backend clock seconds.
	InputBufferADCTimeSeconds float64
	Overflow                  bool
}

// Device describes one enumerated audio device.
type Device struct {
	ID         string
	Name       string
	IsDefault  bool
	MaxChannel int
}

// Enumerator lists and validates devices for a given format before a
// Backend is constructed.
type Enumerator interface {
	EnumeratePlaybackDevices() ([]Device, error)
	EnumerateCaptureDevices() ([]Device, error)
	TestDevice(deviceID string, format audioformat.Format) error
}

// TimeSync is the external time-synchronization collaborator: two pure,
// mutually-inverse functions mapping between the server's source timeline
// and this host's monotonic clock. The core re-reads them on every mapping
// attempt rather than caching a fixed offset.
type TimeSync interface {
	ComputeClientTime(sourceUS int64) int64
	ComputeServerTime(monotonicUS int64) int64
}
